// Package theme installs the chatbot app embed into a shop's published theme.
//
// The install is a read-modify-write of config/settings_data.json:
//
//	GET themes.json             -> pick role=main
//	GET assets.json?asset[key]  -> 404 means "start from an empty document"
//	PUT assets.json             -> 404 means "asset missing", fall back to POST
//
// There is no version check between the read and the write. Two installs racing
// on the same shop both succeed and the later write wins.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"convexbot/internal/shopify"
)

var (
	ErrInvalidInput     = errors.New("invalid install input")
	ErrThemeListFailed  = errors.New("theme list failed")
	ErrNoMainTheme      = errors.New("no main theme")
	ErrAssetFetchFailed = errors.New("asset fetch failed")
	ErrAssetWriteFailed = errors.New("asset write failed")
	ErrMalformedAsset   = errors.New("malformed settings asset")
)

const (
	DefaultBlockID   = "3693381111320325491"
	DefaultBlockType = "shopify://apps/convex-ai-chatbot/blocks/chatbot"
)

// ThemeAPI is the slice of the Admin API the installer needs.
type ThemeAPI interface {
	ListThemes(ctx context.Context, s shopify.Session) ([]shopify.Theme, error)
	GetAsset(ctx context.Context, s shopify.Session, themeID int64, key string) (shopify.Asset, error)
	UpdateAsset(ctx context.Context, s shopify.Session, themeID int64, a shopify.Asset) error
	CreateAsset(ctx context.Context, s shopify.Session, themeID int64, a shopify.Asset) error
}

type Installer struct {
	api    ThemeAPI
	block  Block
	logger *slog.Logger
}

func NewInstaller(api ThemeAPI, block Block, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{api: api, block: block, logger: logger}
}

type Result struct {
	ThemeID      int64
	ThemeName    string
	Action       Action
	AssetCreated bool

	// BlockType is the type stored in the theme. An enabled block keeps the
	// type it was installed with, which may differ from the configured one.
	BlockType string
	// Position is the block's index in block_order, -1 if absent.
	Position int
}

// Install makes sure the chatbot block is present and enabled in the main theme.
func (in *Installer) Install(ctx context.Context, shopDomain, accessToken string) (*Result, error) {
	shopDomain = strings.TrimSpace(shopDomain)
	accessToken = strings.TrimSpace(accessToken)
	if shopDomain == "" || accessToken == "" {
		return nil, fmt.Errorf("%w: shop domain and access token are required", ErrInvalidInput)
	}
	if in.block.ID == "" || in.block.Type == "" {
		return nil, fmt.Errorf("%w: block id and type must be configured", ErrInvalidInput)
	}

	s := shopify.Session{Shop: shopDomain, AccessToken: accessToken}
	log := in.logger.With(slog.String("shop", shopDomain))

	themes, err := in.api.ListThemes(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThemeListFailed, err)
	}
	published, ok := mainTheme(themes)
	if !ok {
		return nil, fmt.Errorf("%w: %d themes, none with role %q", ErrNoMainTheme, len(themes), shopify.RoleMain)
	}
	log = log.With(slog.Int64("theme_id", published.ID))

	var settings *Settings
	asset, err := in.api.GetAsset(ctx, s, published.ID, shopify.SettingsDataKey)
	switch {
	case errors.Is(err, shopify.ErrNotFound):
		log.Info("settings asset missing, starting from empty document")
		settings = EmptySettings()
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrAssetFetchFailed, err)
	default:
		settings, err = ParseSettings(asset.Value)
		if err != nil {
			return nil, err
		}
	}

	action, err := settings.EnsureBlock(in.block)
	if err != nil {
		return nil, err
	}

	value, err := settings.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAsset, err)
	}

	created, err := in.upsert(ctx, s, published.ID, shopify.Asset{Key: shopify.SettingsDataKey, Value: value})
	if err != nil {
		return nil, err
	}

	res := &Result{
		ThemeID:      published.ID,
		ThemeName:    published.Name,
		Action:       action,
		AssetCreated: created,
		Position:     indexOf(settings.BlockOrder(), in.block.ID),
	}
	if def, ok := settings.Block(in.block.ID); ok {
		res.BlockType, _ = def["type"].(string)
	}
	if res.BlockType != in.block.Type {
		log.Warn("installed block type differs from configured type",
			slog.String("stored", res.BlockType),
			slog.String("configured", in.block.Type),
		)
	}

	log.Info("chatbot block installed",
		slog.String("block_id", in.block.ID),
		slog.String("action", string(action)),
		slog.Bool("asset_created", created),
		slog.Int("block_position", res.Position),
	)
	return res, nil
}

// upsert replaces the asset, creating it only when the replace reports 404.
func (in *Installer) upsert(ctx context.Context, s shopify.Session, themeID int64, a shopify.Asset) (created bool, err error) {
	err = in.api.UpdateAsset(ctx, s, themeID, a)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shopify.ErrNotFound) {
		return false, fmt.Errorf("%w: update: %w", ErrAssetWriteFailed, err)
	}

	if err := in.api.CreateAsset(ctx, s, themeID, a); err != nil {
		return false, fmt.Errorf("%w: create after update 404: %w", ErrAssetWriteFailed, err)
	}
	return true, nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func mainTheme(themes []shopify.Theme) (shopify.Theme, bool) {
	for _, t := range themes {
		if t.Role == shopify.RoleMain {
			return t, true
		}
	}
	return shopify.Theme{}, false
}
