package service

import (
	"net/http"

	"github.com/DockYard/plausible-proxy/plausible"
)

// NewStaticPropsCallback creates an event callback attaching the same props
// to every relayed event, no props are attached when props is empty
func NewStaticPropsCallback(props map[string]string) plausible.EventCallback {
	if len(props) == 0 {
		return plausible.DefaultEventCallback
	}

	staticProps := make(map[string]any, len(props))
	for key, value := range props {
		staticProps[key] = value
	}

	return func(r *http.Request, event plausible.InboundEvent, remoteIP string) (plausible.PayloadModifiers, error) {
		// copy per event so a later stage can't mutate the shared props
		eventProps := make(map[string]any, len(staticProps))
		for key, value := range staticProps {
			eventProps[key] = value
		}

		return plausible.PayloadModifiers{Props: eventProps}, nil
	}
}
