package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// candidateSchemaJSON is the wire contract detectors push against.
// Structural validation happens here; address curve checks and price
// sanity stay in intake.
const candidateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["address", "source", "last_price_usd"],
  "additionalProperties": false,
  "properties": {
    "address": {"type": "string", "minLength": 32, "maxLength": 44},
    "symbol": {"type": "string", "maxLength": 32},
    "name": {"type": "string", "maxLength": 128},
    "source": {"type": "string", "minLength": 1, "maxLength": 64},
    "observed_at": {"type": "integer", "minimum": 0},
    "last_price_usd": {"type": "number", "exclusiveMinimum": 0},
    "signals": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "sellable": {"type": "boolean"},
        "authority_revoked": {"type": "boolean"},
        "locker_id": {"type": "string", "maxLength": 64},
        "locker_rep": {"type": "number", "minimum": 0, "maximum": 100},
        "sniper_pct": {"type": "number", "minimum": 0, "maximum": 100},
        "top10_pct": {"type": "number", "minimum": 0, "maximum": 100},
        "lp_lock_days": {"type": "number", "minimum": 0},
        "creator_age_days": {"type": "number", "minimum": 0},
        "creator_rug_count": {"type": "integer", "minimum": 0}
      }
    },
    "factors": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "volume_usd": {"type": "number", "minimum": 0},
        "liquidity_usd": {"type": "number", "minimum": 0},
        "holder_quality": {"type": "number", "minimum": 0, "maximum": 1},
        "price_momentum": {"type": "number"},
        "smart_money_pct": {"type": "number", "minimum": 0, "maximum": 100}
      }
    }
  }
}`

var candidateSchema = jsonschema.MustCompileString("candidate.json", candidateSchemaJSON)

// candidatePayload is the JSON shape of one pushed candidate.
type candidatePayload struct {
	Address      string         `json:"address"`
	Symbol       string         `json:"symbol,omitempty"`
	Name         string         `json:"name,omitempty"`
	Source       string         `json:"source"`
	ObservedAt   int64          `json:"observed_at,omitempty"`
	LastPriceUSD float64        `json:"last_price_usd"`
	Signals      signalsPayload `json:"signals,omitempty"`
	Factors      factorsPayload `json:"factors,omitempty"`
}

type signalsPayload struct {
	Sellable         *bool    `json:"sellable,omitempty"`
	AuthorityRevoked *bool    `json:"authority_revoked,omitempty"`
	LockerID         string   `json:"locker_id,omitempty"`
	LockerRep        *float64 `json:"locker_rep,omitempty"`
	SniperPct        *float64 `json:"sniper_pct,omitempty"`
	Top10Pct         *float64 `json:"top10_pct,omitempty"`
	LPLockDays       *float64 `json:"lp_lock_days,omitempty"`
	CreatorAgeDays   *float64 `json:"creator_age_days,omitempty"`
	CreatorRugCount  *int     `json:"creator_rug_count,omitempty"`
}

type factorsPayload struct {
	VolumeUSD     *float64 `json:"volume_usd,omitempty"`
	LiquidityUSD  *float64 `json:"liquidity_usd,omitempty"`
	HolderQuality *float64 `json:"holder_quality,omitempty"`
	PriceMomentum *float64 `json:"price_momentum,omitempty"`
	SmartMoneyPct *float64 `json:"smart_money_pct,omitempty"`
}

// decodeCandidate parses and schema-validates one candidate message.
func decodeCandidate(body []byte) (candidatePayload, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return candidatePayload{}, fmt.Errorf("parse json: %w", err)
	}
	if err := candidateSchema.Validate(raw); err != nil {
		return candidatePayload{}, err
	}

	var p candidatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return candidatePayload{}, fmt.Errorf("decode candidate: %w", err)
	}
	return p, nil
}

// toDomain maps the wire payload to a domain candidate. A missing
// observed_at defaults to the server clock.
func (p candidatePayload) toDomain(clock func() time.Time) domain.Candidate {
	c := domain.Candidate{
		Address:      p.Address,
		Symbol:       p.Symbol,
		Name:         p.Name,
		Source:       p.Source,
		ObservedAt:   p.ObservedAt,
		LastPriceUSD: p.LastPriceUSD,
		Signals: domain.SafetySignals{
			Sellable:         p.Signals.Sellable,
			AuthorityRevoked: p.Signals.AuthorityRevoked,
			LockerID:         p.Signals.LockerID,
			LockerRep:        p.Signals.LockerRep,
			SniperPct:        p.Signals.SniperPct,
			Top10Pct:         p.Signals.Top10Pct,
			LPLockDays:       p.Signals.LPLockDays,
			CreatorAgeDays:   p.Signals.CreatorAgeDays,
			CreatorRugCount:  p.Signals.CreatorRugCount,
		},
		Factors: domain.FactorInputs{
			VolumeUSD:     p.Factors.VolumeUSD,
			LiquidityUSD:  p.Factors.LiquidityUSD,
			HolderQuality: p.Factors.HolderQuality,
			PriceMomentum: p.Factors.PriceMomentum,
			SmartMoneyPct: p.Factors.SmartMoneyPct,
		},
	}
	if c.ObservedAt == 0 {
		c.ObservedAt = clock().UnixMilli()
	}
	return c
}
