package model

import (
	"context"

	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

type ListModelsLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// List available models and the current selection
func NewListModelsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListModelsLogic {
	return &ListModelsLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ListModelsLogic) ListModels() (*types.ModelCatalogResponse, error) {
	return &types.ModelCatalogResponse{
		AvailableModels: l.svcCtx.Models.Catalog(),
		CurrentModel:    l.svcCtx.Models.Current(),
	}, nil
}
