package services

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"questline/database/models"
)

var rarityColors = map[string]int{
	models.RarityCommon:    0xa0a0a0,
	models.RarityRare:      0x0070dd,
	models.RarityEpic:      0xa335ee,
	models.RarityLegendary: 0xff8000,
}

// LevelUpNotifier announces level-ups and item drops through a Discord
// webhook. Delivery failures are the caller's to log; the engine treats
// notifications as best-effort.
type LevelUpNotifier struct {
	client webhook.Client
	images *ItemImageService
}

func NewLevelUpNotifier(webhookID snowflake.ID, token string, images *ItemImageService) *LevelUpNotifier {
	return &LevelUpNotifier{
		client: webhook.New(webhookID, token),
		images: images,
	}
}

func (n *LevelUpNotifier) NotifyLevelUp(ctx context.Context, userID string, level int, reward *models.Item) error {
	builder := discord.NewWebhookMessageCreateBuilder().
		SetContentf("<@%s> reached level %d!", userID, level)

	if reward != nil {
		embed := discord.NewEmbedBuilder().
			SetTitlef("Item drop: %s", reward.Name).
			SetDescriptionf("Rarity: %s", reward.Rarity).
			SetColor(rarityColors[reward.Rarity])
		if n.images != nil {
			if url := n.images.ImageURL(reward.ImageRef); url != "" {
				embed.SetThumbnail(url)
			}
		}
		builder.SetEmbeds(embed.Build())
	}

	_, err := n.client.CreateMessage(builder.Build(), rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to deliver level-up notification: %w", err)
	}
	return nil
}

func (n *LevelUpNotifier) Close(ctx context.Context) {
	n.client.Close(ctx)
}
