package in

import (
	"context"

	"watchtime/internal/modules/filter/dto"
	filterin "watchtime/internal/modules/filter/port/in"
)

type CLIHandler struct {
	usecase filterin.Usecase
}

func NewCLIHandler(usecase filterin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.PluginInfo, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Check(ctx context.Context, title, url string) (dto.DecisionOutput, error) {
	return h.usecase.Check(ctx, dto.CheckInput{Title: title, URL: url})
}
