package submission

import (
	"SuggestBot/internal/core/domain"
	"fmt"
)

// PackageKind tells the dispatcher which Telegram method to use.
type PackageKind int

const (
	PackageSingle PackageKind = iota + 1 // sendPhoto
	PackageAlbum                         // sendMediaGroup
)

func (k PackageKind) String() string {
	switch k {
	case PackageSingle:
		return "single"
	case PackageAlbum:
		return "album"
	default:
		return "empty"
	}
}

// PackageItem is one photo of a moderation package.
type PackageItem struct {
	PhotoRef string
	Caption  string
}

// ModerationPackage is what gets posted to the moderation chat.
type ModerationPackage struct {
	Kind  PackageKind
	Items []PackageItem
}

// PhotoRefs lists the photos that will actually be sent.
func (p ModerationPackage) PhotoRefs() []string {
	refs := make([]string, len(p.Items))
	for i, item := range p.Items {
		refs[i] = item.PhotoRef
	}
	return refs
}

// Packager turns a pending submission into a moderation package.
type Packager struct {
	AuthorLabel string
}

// CaptionBlock renders "<label>: <name>\n<caption>".
func (p Packager) CaptionBlock(author domain.Author, caption string) string {
	return fmt.Sprintf("%s: %s\n%s", p.AuthorLabel, author.DisplayName(), caption)
}

// Build packages a submission. A single photo becomes a captioned photo.
// Several photos become an album of at most domain.MaxAlbumItems, where
// only the first item carries the caption; the rest are dropped silently.
func (p Packager) Build(sub domain.PendingSubmission, author domain.Author) ModerationPackage {
	refs := sub.PhotoRefs
	if len(refs) == 0 {
		return ModerationPackage{}
	}

	caption := p.CaptionBlock(author, sub.Caption)
	if len(refs) == 1 {
		return ModerationPackage{
			Kind:  PackageSingle,
			Items: []PackageItem{{PhotoRef: refs[0], Caption: caption}},
		}
	}

	if len(refs) > domain.MaxAlbumItems {
		refs = refs[:domain.MaxAlbumItems]
	}
	items := make([]PackageItem, len(refs))
	for i, ref := range refs {
		items[i] = PackageItem{PhotoRef: ref}
	}
	items[0].Caption = caption
	return ModerationPackage{Kind: PackageAlbum, Items: items}
}
