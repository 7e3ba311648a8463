package model

import (
	"net/http"

	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/logic/model"
	"github.com/opalchat/opal/internal/svc"
)

// List available models and the current selection
func ListModelsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := model.NewListModelsLogic(r.Context(), svcCtx)
		resp, err := l.ListModels()
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
