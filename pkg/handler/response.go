package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"virtualcard_back/pkg/repository"
	"virtualcard_back/pkg/service"
)

type Error struct {
	Message string `json:"error"`
}

func newErrorResponse(c *gin.Context, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		logrus.WithField("path", c.FullPath()).Error(message)
	}
	c.AbortWithStatusJSON(statusCode, Error{Message: message})
}

// serviceError переводит ошибку сервиса в HTTP статус.
func serviceError(c *gin.Context, err error) {
	var (
		verr    *service.ValidationError
		replay  *service.ReplayError
		funding *service.FundingError
	)
	switch {
	case errors.As(err, &verr):
		newErrorResponse(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		newErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrCardNotFound), errors.Is(err, repository.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.As(err, &replay), errors.Is(err, service.ErrAlreadyDispatched),
		errors.Is(err, service.ErrTopupLocked):
		newErrorResponse(c, http.StatusConflict, err.Error())
	case errors.As(err, &funding):
		status := funding.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		newErrorResponse(c, status, funding.Message)
	case errors.Is(err, service.ErrFundingUnknown):
		newErrorResponse(c, http.StatusBadGateway, err.Error())
	default:
		newErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

func wrapOkJSON(c *gin.Context, response map[string]interface{}) {
	c.JSON(http.StatusOK, response)
}
