package model

import (
	"context"
	"fmt"

	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

type SelectModelLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Select the process-wide model
func NewSelectModelLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SelectModelLogic {
	return &SelectModelLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SelectModelLogic) SelectModel(modelID string) (*types.SelectModelResponse, error) {
	if err := l.svcCtx.Models.Select(modelID); err != nil {
		return nil, err
	}

	name := l.svcCtx.Models.DisplayName(modelID)
	return &types.SelectModelResponse{
		Message:      fmt.Sprintf("Model changed to %s", name),
		CurrentModel: modelID,
		ModelName:    name,
	}, nil
}
