package usecase

import (
	"context"

	"watchtime/internal/modules/filter/dto"
	filterin "watchtime/internal/modules/filter/port/in"
	"watchtime/internal/modules/filter/service"
)

type Interactor struct {
	svc *service.FilterService
}

func NewInteractor(svc *service.FilterService) filterin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Check(ctx context.Context, input dto.CheckInput) (dto.DecisionOutput, error) {
	return i.svc.Check(ctx, input)
}

func (i *Interactor) List(ctx context.Context) ([]dto.PluginInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}
