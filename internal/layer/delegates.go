package layer

import (
	"context"
	"encoding/json"

	"github.com/joeblew999/plat-water/internal/loading"
	"github.com/joeblew999/plat-water/internal/query"
	"github.com/joeblew999/plat-water/internal/state"
)

// LayerType is how the host stacks a map layer.
type LayerType string

const (
	BaseLayer LayerType = "base-layer"
	Overlay   LayerType = "overlay"
)

// Delegates is the set of host capabilities a module may use. Every member is
// optional; a host that does not support a capability leaves it nil and the
// module carries on without it.
type Delegates struct {
	NotifyLoading                 loading.Notifier
	AddMapLayer                   func(layer *MapLayer, name string, typ LayerType, active bool)
	SharedStates                  func() state.Snapshot
	UpdateSharedStates            func(patch state.Snapshot)
	CheckIfDataProviderRegistered func(identifier string) bool
	QueryData                     func(ctx context.Context, dataSource string, q query.Object) json.RawMessage
}

func (d Delegates) addMapLayer(l *MapLayer, name string, typ LayerType, active bool) {
	if d.AddMapLayer != nil {
		d.AddMapLayer(l, name, typ, active)
	}
}

func (d Delegates) sharedStates() state.Snapshot {
	if d.SharedStates == nil {
		return nil
	}
	return d.SharedStates()
}

func (d Delegates) updateSharedStates(patch state.Snapshot) {
	if d.UpdateSharedStates != nil {
		d.UpdateSharedStates(patch)
	}
}

func (d Delegates) providerRegistered(identifier string) bool {
	if d.CheckIfDataProviderRegistered == nil {
		return false
	}
	return d.CheckIfDataProviderRegistered(identifier)
}

func (d Delegates) queryData(ctx context.Context, dataSource string, q query.Object) json.RawMessage {
	if d.QueryData == nil {
		return nil
	}
	return d.QueryData(ctx, dataSource, q)
}
