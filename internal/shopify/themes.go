package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	RoleMain = "main"

	SettingsDataKey = "config/settings_data.json"
)

type Theme struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Asset struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type themesResp struct {
	Themes []Theme `json:"themes"`
}

type assetEnvelope struct {
	Asset Asset `json:"asset"`
}

func (c *Client) ListThemes(ctx context.Context, s Session) ([]Theme, error) {
	var out themesResp
	if err := c.do(ctx, s.Shop, s.AccessToken, http.MethodGet, c.adminPath("themes.json"), nil, &out); err != nil {
		return nil, err
	}
	return out.Themes, nil
}

func (c *Client) GetAsset(ctx context.Context, s Session, themeID int64, key string) (Asset, error) {
	q := url.Values{}
	q.Set("asset[key]", key)
	path := c.adminPath("themes/%d/assets.json", themeID) + "?" + q.Encode()

	var out assetEnvelope
	if err := c.do(ctx, s.Shop, s.AccessToken, http.MethodGet, path, nil, &out); err != nil {
		return Asset{}, err
	}
	if out.Asset.Key == "" {
		out.Asset.Key = key
	}
	return out.Asset, nil
}

// UpdateAsset replaces an existing asset (PUT).
func (c *Client) UpdateAsset(ctx context.Context, s Session, themeID int64, a Asset) error {
	return c.writeAsset(ctx, s, http.MethodPut, themeID, a)
}

// CreateAsset inserts a new asset (POST).
func (c *Client) CreateAsset(ctx context.Context, s Session, themeID int64, a Asset) error {
	return c.writeAsset(ctx, s, http.MethodPost, themeID, a)
}

func (c *Client) writeAsset(ctx context.Context, s Session, method string, themeID int64, a Asset) error {
	if a.Key == "" {
		return fmt.Errorf("asset key is required")
	}
	path := c.adminPath("themes/%d/assets.json", themeID)
	return c.do(ctx, s.Shop, s.AccessToken, method, path, assetEnvelope{Asset: a}, nil)
}
