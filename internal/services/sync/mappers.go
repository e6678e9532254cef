package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/salesdiver/hublink/internal/models"
)

// msEpochThreshold splits epoch seconds from epoch milliseconds by magnitude.
// A legitimate second-based timestamp would have to be past year 33658 to
// misclassify; see the boundary test.
const msEpochThreshold = 1_000_000_000_000

// isoLayouts are the accepted ISO-8601 variants, tried in order. time.Parse
// accepts an optional fractional-second field regardless of layout, so
// RFC3339 covers both "2026-01-25T00:00:00Z" and "2026-01-25T00:00:00.000Z"
// as well as numeric offsets.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ExtractField looks up key in a heterogeneous deal payload: top-level scalar,
// then a top-level {value:} wrapper, then properties[key], then
// properties[key].value. First match wins.
func ExtractField(payload models.DealPayload, key string) (any, bool) {
	if v, ok := payload[key]; ok {
		if wrapped, isMap := v.(map[string]any); isMap {
			if inner, ok := wrapped["value"]; ok {
				return inner, true
			}
		} else {
			return v, true
		}
	}
	if props, ok := payload["properties"].(map[string]any); ok {
		if v, ok := props[key]; ok {
			if wrapped, isMap := v.(map[string]any); isMap {
				if inner, ok := wrapped["value"]; ok {
					return inner, true
				}
			} else {
				return v, true
			}
		}
	}
	return nil, false
}

// ExtractString is ExtractField restricted to string values.
func ExtractString(payload models.DealPayload, key string) (string, bool) {
	v, ok := ExtractField(payload, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ParseAmount parses a HubSpot decimal-as-string amount. Empty, absent, or
// unparsable values degrade to 0 rather than failing the sync.
func ParseAmount(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return amount
}

// ParseDateFlexible parses a date that may be an ISO-8601 string, an epoch
// string, or an epoch number. ISO forms are tried first; numeric values are
// disambiguated as seconds vs milliseconds by magnitude.
func ParseDateFlexible(value any) *time.Time {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				t = t.UTC()
				return &t
			}
		}
		epoch, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return dateFromEpochFlexible(epoch)
	case float64:
		return dateFromEpochFlexible(v)
	case int:
		return dateFromEpochFlexible(float64(v))
	case int64:
		return dateFromEpochFlexible(float64(v))
	default:
		return nil
	}
}

func dateFromEpochFlexible(raw float64) *time.Time {
	var t time.Time
	if raw > msEpochThreshold {
		t = time.UnixMilli(int64(raw)).UTC()
	} else {
		t = time.Unix(int64(raw), 0).UTC()
	}
	return &t
}

// ParseLastModified parses hs_lastmodifieddate, which HubSpot emits as a
// millisecond epoch string.
func ParseLastModified(value string) *time.Time {
	ms, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

// NormalizeForecastToken lowercases a forecast token and strips spaces and
// underscores, so "Best Case", "best_case", and "bestcase" all normalize
// identically. Empty input normalizes to ("", false).
func NormalizeForecastToken(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	compact := strings.ToLower(trimmed)
	compact = strings.ReplaceAll(compact, " ", "")
	compact = strings.ReplaceAll(compact, "_", "")
	return compact, true
}

// MapForecastCategory maps a normalized forecast token to the local category.
// Unknown tokens (including "omitted") collapse to ForecastOmitted.
func MapForecastCategory(normalized string) models.ForecastCategory {
	switch normalized {
	case "pipeline":
		return models.ForecastPipeline
	case "bestcase", "mostlikely":
		return models.ForecastBestCase
	case "commit":
		return models.ForecastCommit
	case "closed", "closedwon":
		return models.ForecastClosed
	default:
		return models.ForecastOmitted
	}
}

// ReverseMapForecastCategory maps a local category back to the HubSpot token.
// The Omitted collapse is intentionally lossy.
func ReverseMapForecastCategory(category models.ForecastCategory) string {
	return category.String()
}

// MapDealStageToForecast derives a forecast category from a deal stage when
// no explicit forecast field exists. Substring checks run in precedence order.
func MapDealStageToForecast(stage string) models.ForecastCategory {
	s := strings.ToLower(stage)
	if strings.Contains(s, "closedwon") {
		return models.ForecastClosed
	}
	if strings.Contains(s, "contract") || strings.Contains(s, "decision") {
		return models.ForecastCommit
	}
	if strings.Contains(s, "qualified") || strings.Contains(s, "proposal") {
		return models.ForecastBestCase
	}
	return models.ForecastPipeline
}

// ResolveForecastCategory applies the forecast precedence for a deal payload:
// forecast_category, then hs_forecast_category, then dealstage. Sources are
// never blended; the first present and normalizable value wins.
func ResolveForecastCategory(payload models.DealPayload) (models.ForecastCategory, bool) {
	for _, key := range []string{"forecast_category", "hs_forecast_category"} {
		if raw, ok := ExtractString(payload, key); ok {
			if normalized, ok := NormalizeForecastToken(raw); ok {
				return MapForecastCategory(normalized), true
			}
		}
	}
	if stage, ok := ExtractString(payload, "dealstage"); ok && strings.TrimSpace(stage) != "" {
		return MapDealStageToForecast(stage), true
	}
	return models.ForecastOmitted, false
}

// DeriveCompanyName derives a company name from a deal name using common
// separators. Used only as a fallback when no remote company association
// resolves.
func DeriveCompanyName(dealName string) string {
	separators := []string{" - ", " – ", " — ", ":", "|"}
	for _, sep := range separators {
		if !strings.Contains(dealName, sep) {
			continue
		}
		for _, component := range strings.Split(dealName, sep) {
			if trimmed := strings.TrimSpace(component); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(dealName)
}
