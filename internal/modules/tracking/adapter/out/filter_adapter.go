package out

import (
	"context"

	filterdto "watchtime/internal/modules/filter/dto"
	filterin "watchtime/internal/modules/filter/port/in"
	trackingout "watchtime/internal/modules/tracking/port/out"
)

var _ trackingout.SignalFilter = FilterAdapter{}

// FilterAdapter lets the tracking loop consult the filter module.
type FilterAdapter struct {
	filter filterin.Usecase
}

func NewFilterAdapter(filter filterin.Usecase) FilterAdapter {
	return FilterAdapter{filter: filter}
}

func (a FilterAdapter) Allow(ctx context.Context, title, url string) (bool, string, error) {
	out, err := a.filter.Check(ctx, filterdto.CheckInput{Title: title, URL: url})
	if err != nil {
		return false, "", err
	}
	return out.Allowed, out.Reason, nil
}
