package in

import (
	"context"

	"watchtime/internal/modules/filter/dto"
)

type Usecase interface {
	Check(ctx context.Context, input dto.CheckInput) (dto.DecisionOutput, error)
	List(ctx context.Context) ([]dto.PluginInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
}
