package adapter

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"treasury/internal/model"
	"treasury/internal/model/enum"
)

// AssetSource is the slice of the asset repository the bridge adapters need
// to resolve counterpart assets.
type AssetSource interface {
	Coin(ctx context.Context, chain enum.Blockchain) (*model.Asset, error)
	ByQuery(ctx context.Context, name string, typ enum.AssetType, chain enum.Blockchain) (*model.Asset, error)
}

// targetAssetName resolves the asset the order's rule guards. Orders are
// always loaded with the pipeline and rule preloaded.
func targetAssetName(order *model.Order) (string, error) {
	asset, err := targetAsset(order)
	if err != nil {
		return "", err
	}
	return asset.Name, nil
}

// targetAsset resolves the full asset record the order's rule guards.
func targetAsset(order *model.Order) (*model.Asset, error) {
	if order.Pipeline == nil || order.Pipeline.Rule == nil || order.Pipeline.Rule.TargetAsset == nil {
		return nil, errors.Errorf("order %d has no target asset", order.ID)
	}
	return order.Pipeline.Rule.TargetAsset, nil
}

// targetFiatName resolves the fiat currency the order's rule guards.
func targetFiatName(order *model.Order) (string, error) {
	if order.Pipeline == nil || order.Pipeline.Rule == nil || order.Pipeline.Rule.TargetFiat == nil {
		return "", errors.Errorf("order %d has no target fiat", order.ID)
	}
	return order.Pipeline.Rule.TargetFiat.Name, nil
}

// actionParams decodes the action's JSON parameter blob. An empty blob
// yields an empty map.
func actionParams(order *model.Order) (map[string]string, error) {
	return parseParams(order.Action.Params)
}

func parseParams(raw string) (map[string]string, error) {
	params := map[string]string{}
	if raw == "" {
		return params, nil
	}
	if err := sonic.UnmarshalString(raw, &params); err != nil {
		return nil, errors.Wrap(err, "parse action params")
	}
	return params, nil
}
