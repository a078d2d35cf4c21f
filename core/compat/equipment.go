package compat

import (
	"strings"

	"github.com/kilianp07/rakeplan/core/model"
)

const (
	EquipmentConveyor  = "conveyor"
	EquipmentPayloader = "payloader"
	EquipmentCrane     = "crane"
)

var materialEquipment = map[string][]string{
	"coal":        {EquipmentConveyor},
	"coke":        {EquipmentConveyor},
	"iron_ore":    {EquipmentConveyor},
	"limestone":   {EquipmentPayloader},
	"dolomite":    {EquipmentPayloader},
	"slag":        {EquipmentPayloader},
	"steel":       {EquipmentCrane},
	"steel_coils": {EquipmentCrane},
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// RequiredEquipment returns the loading equipment a material needs. known is
// false when the material has no mapping, in which case any loading point is
// acceptable.
func RequiredEquipment(material string) (equipment []string, known bool) {
	eq, ok := materialEquipment[normalize(material)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), eq...), true
}

// HasEquipment reports whether the loading point offers every required item.
func HasEquipment(lp model.LoadingPointStatus, required []string) bool {
	for _, r := range required {
		found := false
		for _, e := range lp.Equipment {
			if strings.EqualFold(strings.TrimSpace(e), r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RouteAllows reports whether a route accepts the material. A restriction of
// the form "no:<material>" excludes it.
func RouteAllows(r model.Route, material string) bool {
	m := normalize(material)
	for _, res := range r.Restrictions {
		res = strings.ToLower(strings.TrimSpace(res))
		if !strings.HasPrefix(res, "no:") {
			continue
		}
		if normalize(strings.TrimPrefix(res, "no:")) == m {
			return false
		}
	}
	return true
}
