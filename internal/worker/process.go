package worker

import (
	"context"
	"fmt"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
)

// processCreateChannel creates the channel remotely and, on success, persists
// the channel row and binds it to the creating account as owner. A failure
// after remote creation still counts the item as a success so the counters
// keep matching reality; the channel sync job repairs the row later.
func (r *Router) processCreateChannel(ctx context.Context, item CreateChannelItem) (string, error) {
	var info telegram.ChannelInfo
	err := r.registry.WithSession(ctx, item.SessionName, func(ctx context.Context, c telegram.Client) error {
		var err error
		info, err = c.CreateChannel(ctx, item.Title, item.About)
		return err
	})
	if err != nil {
		return fmt.Sprintf("create channel %q: %v", item.Title, err), err
	}

	channelID, _, err := r.store.UpsertChannelByTID(ctx, domain.Channel{
		UserID:      item.UserID,
		TID:         info.TID,
		Title:       item.Title,
		Description: item.About,
	})
	if err != nil {
		r.log.Error().Err(err).Int64("tid", info.TID).Msg("persist created channel failed")
		return fmt.Sprintf("created channel %q (tid %d), persist failed: %v", item.Title, info.TID, err), nil
	}
	err = r.store.BindAccountChannel(ctx, domain.ChannelBinding{
		AccountID:  item.AccountID,
		ChannelID:  channelID,
		AccessHash: info.AccessHash,
		Role:       domain.RoleOwner,
	})
	if err != nil {
		r.log.Error().Err(err).Str("channel_id", channelID).Msg("bind created channel failed")
	}
	return fmt.Sprintf("created channel %q (tid %d)", item.Title, info.TID), nil
}

func (r *Router) processSetUsername(ctx context.Context, item SetUsernameItem) (string, error) {
	err := r.registry.WithSession(ctx, item.SessionName, func(ctx context.Context, c telegram.Client) error {
		return c.SetUsername(ctx, item.ChannelTID, item.AccessHash, item.Username)
	})
	if err != nil {
		return fmt.Sprintf("set username on channel %d: %v", item.ChannelTID, err), err
	}
	if err := r.store.SetChannelUsername(ctx, item.ChannelID, item.Username); err != nil {
		r.log.Error().Err(err).Str("channel_id", item.ChannelID).Msg("persist username failed")
	}
	return fmt.Sprintf("set username %q on channel %d", item.Username, item.ChannelTID), nil
}

func (r *Router) processSetPhoto(ctx context.Context, item SetPhotoItem) (string, error) {
	err := r.registry.WithSession(ctx, item.SessionName, func(ctx context.Context, c telegram.Client) error {
		return c.SetPhoto(ctx, item.ChannelTID, item.AccessHash, item.PhotoPath)
	})
	if err != nil {
		return fmt.Sprintf("set photo on channel %d: %v", item.ChannelTID, err), err
	}
	if err := r.store.SetChannelPhoto(ctx, item.ChannelID, item.PhotoPath); err != nil {
		r.log.Error().Err(err).Str("channel_id", item.ChannelID).Msg("persist photo failed")
	}
	return fmt.Sprintf("set photo on channel %d", item.ChannelTID), nil
}

func (r *Router) processSetDescription(ctx context.Context, item SetDescriptionItem) (string, error) {
	err := r.registry.WithSession(ctx, item.SessionName, func(ctx context.Context, c telegram.Client) error {
		return c.SetDescription(ctx, item.ChannelTID, item.AccessHash, item.Description)
	})
	if err != nil {
		return fmt.Sprintf("set description on channel %d: %v", item.ChannelTID, err), err
	}
	if err := r.store.SetChannelDescription(ctx, item.ChannelID, item.Description); err != nil {
		r.log.Error().Err(err).Str("channel_id", item.ChannelID).Msg("persist description failed")
	}
	return fmt.Sprintf("set description on channel %d", item.ChannelTID), nil
}
