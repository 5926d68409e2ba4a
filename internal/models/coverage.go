package models

import (
	"time"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ServiceOffering is one transport service a carrier declares (e.g. "carga
// seca", "refrigerada"). A carrier with no active offering matches nothing.
type ServiceOffering struct {
	Name   string `bson:"name" json:"name"`
	Active bool   `bson:"active" json:"active"`
}

// CarrierCoverage declares what a carrier services. Goods codes and regions
// follow an opt-out model: everything is eligible unless explicitly denied.
// Declaring any allowed region flips region matching to an allow-list.
type CarrierCoverage struct {
	Base             `bson:",inline"`
	CarrierID        utils.SixID       `bson:"carrier_id" json:"carrier_id"`
	GoodsCodesDenied []string          `bson:"goods_codes_denied,omitempty" json:"goods_codes_denied,omitempty"`
	RegionsDenied    []string          `bson:"regions_denied,omitempty" json:"regions_denied,omitempty"`
	RegionsAllowed   []string          `bson:"regions_allowed,omitempty" json:"regions_allowed,omitempty"`
	Offerings        []ServiceOffering `bson:"offerings" json:"offerings"`
	UpdatedAt        time.Time         `bson:"updated_at" json:"updated_at"`
}

// RegionMode is the resolved, tagged form of the region rules. Resolving the
// deny-list/allow-list duality once per carrier avoids the semantics silently
// flipping mid-evaluation when a list goes from empty to non-empty.
type RegionMode struct {
	AllowList bool
	Set       map[string]struct{}
}

// RegionMode resolves the carrier's region rules into a tagged variant.
func (c *CarrierCoverage) RegionMode() RegionMode {
	if len(c.RegionsAllowed) > 0 {
		return RegionMode{AllowList: true, Set: toSet(c.RegionsAllowed)}
	}
	return RegionMode{AllowList: false, Set: toSet(c.RegionsDenied)}
}

// Allows reports whether the destination region (UF) is serviced.
func (m RegionMode) Allows(uf string) bool {
	_, listed := m.Set[uf]
	if m.AllowList {
		return listed
	}
	return !listed
}

// DeniesGoods reports whether the goods classification code is opted out.
func (c *CarrierCoverage) DeniesGoods(code string) bool {
	for _, denied := range c.GoodsCodesDenied {
		if denied == code {
			return true
		}
	}
	return false
}

// HasActiveOffering reports whether the carrier declared at least one active
// service. Incomplete profiles must not match any quote.
func (c *CarrierCoverage) HasActiveOffering() bool {
	for _, o := range c.Offerings {
		if o.Active {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
