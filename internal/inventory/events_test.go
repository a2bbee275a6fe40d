package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectAnomalies(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		before Material
		after  Material
		want   []AnomalyKind
	}{
		{"healthy", Material{CurrentStock: d("10")}, Material{CurrentStock: d("9")}, nil},
		{"negative", Material{CurrentStock: d("1")}, Material{CurrentStock: d("-1")}, []AnomalyKind{AnomalyNegativeStock}},
		{"still negative", Material{CurrentStock: d("-1")}, Material{CurrentStock: d("-2")}, []AnomalyKind{AnomalyNegativeStock}},
		{"crosses threshold", Material{CurrentStock: d("6"), LowStockAlert: d("5")}, Material{CurrentStock: d("5"), LowStockAlert: d("5")}, []AnomalyKind{AnomalyLowStock}},
		{"already low", Material{CurrentStock: d("4"), LowStockAlert: d("5")}, Material{CurrentStock: d("3"), LowStockAlert: d("5")}, nil},
		{"no threshold", Material{CurrentStock: d("1")}, Material{CurrentStock: d("0")}, nil},
		{"low to negative", Material{CurrentStock: d("4"), LowStockAlert: d("5")}, Material{CurrentStock: d("-1"), LowStockAlert: d("5")}, []AnomalyKind{AnomalyNegativeStock}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectAnomalies(tc.before, tc.after, "test", at)
			var kinds []AnomalyKind
			for _, a := range got {
				kinds = append(kinds, a.Kind)
				assert.Equal(t, at, a.DetectedAt)
			}
			assert.Equal(t, tc.want, kinds)
		})
	}
}
