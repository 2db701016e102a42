package controllers

import (
	"errors"
	"net/http"

	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

// MapError 将服务层错误转换为 API 错误
func MapError(err error) error {
	var apiErr *utils.ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var terr *service.TransitionError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return utils.NewApiError(err.Error(), http.StatusNotFound, "RESOURCE_NOT_FOUND")
	case errors.Is(err, service.ErrAlreadyResolved):
		return utils.CreateConflictError("该预警已被处理，请刷新后查看", "ALREADY_RESOLVED")
	case errors.Is(err, service.ErrConflict):
		return utils.CreateConflictError("线索已被其他操作修改，请刷新后重试", "LEAD_CHANGED")
	case errors.Is(err, service.ErrInvalidAction):
		return utils.NewApiError(err.Error(), http.StatusBadRequest, "INVALID_ACTION")
	case errors.As(err, &terr):
		return utils.NewApiError(terr.Error(), http.StatusUnprocessableEntity, "INVALID_TRANSITION")
	case errors.Is(err, service.ErrInvalidInput):
		return utils.CreateBadRequestError(err.Error())
	default:
		return err
	}
}
