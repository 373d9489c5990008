package submission

import (
	"SuggestBot/internal/core/ports"
	"context"
	"errors"
	"fmt"
)

var errEmptyPackage = errors.New("moderation package has no photos")

// dispatch posts a package to the moderation chat. Captions are plain text
// so user input needs no escaping.
func dispatch(ctx context.Context, bot ports.BotClientPort, chatID int64, pkg ModerationPackage) error {
	switch pkg.Kind {
	case PackageSingle:
		item := pkg.Items[0]
		_, err := bot.SendPhoto(ctx, ports.SendPhotoParams{
			ChatID:  chatID,
			FileID:  item.PhotoRef,
			Caption: item.Caption,
		})
		return err

	case PackageAlbum:
		media := make([]ports.MediaItem, len(pkg.Items))
		for i, item := range pkg.Items {
			media[i] = ports.MediaItem{FileID: item.PhotoRef, Caption: item.Caption}
		}
		_, err := bot.SendMediaGroup(ctx, ports.SendMediaGroupParams{ChatID: chatID, Items: media})
		return err

	default:
		return fmt.Errorf("dispatch %s package: %w", pkg.Kind, errEmptyPackage)
	}
}
