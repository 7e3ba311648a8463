package model

import (
	"net/http"

	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/logic/model"
	"github.com/opalchat/opal/internal/svc"
)

// Select the process-wide model. The id is the trailing wildcard because
// model ids contain slashes (e.g. "openai/gpt-5").
func SelectModelHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modelID := httputil.PathVar(r, "*")
		if modelID == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "model id required")
			return
		}

		l := model.NewSelectModelLogic(r.Context(), svcCtx)
		resp, err := l.SelectModel(modelID)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
