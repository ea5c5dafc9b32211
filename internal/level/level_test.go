package level_test

import (
	"reflect"
	"testing"

	"github.com/threaded-comments-api/internal/level"
)

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{"valid list", "0,10,20", []int{0, 10, 20}},
		{"spaces", " 0, 5 ,9", []int{0, 5, 9}},
		{"not numbers", "a,b", level.DefaultThresholds},
		{"decreasing", "20,10", level.DefaultThresholds},
		{"repeated", "0,10,10", level.DefaultThresholds},
		{"negative", "-1,10", level.DefaultThresholds},
		{"empty", "", level.DefaultThresholds},
		{"trailing comma", "0,10,", level.DefaultThresholds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := level.ParseThresholds(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseThresholds(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseThresholds_DefaultIsACopy(t *testing.T) {
	got := level.ParseThresholds("")
	got[0] = 99
	if level.DefaultThresholds[0] != 0 {
		t.Error("caller mutation leaked into DefaultThresholds")
	}
}

func TestLevel(t *testing.T) {
	thresholds := []int{0, 10, 20, 50, 100, 200}
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{5, 0},
		{9, 0},
		{10, 1},
		{15, 1},
		{20, 2},
		{49, 2},
		{50, 3},
		{199, 4},
		// top bracket wraps to the lowest level
		{200, 0},
		{1000, 0},
	}

	for _, tt := range tests {
		if got := level.Level(tt.count, thresholds); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestLevel_FirstThresholdAboveCount(t *testing.T) {
	if got := level.Level(2, []int{5, 10}); got != 0 {
		t.Errorf("expected 0 below the first threshold, got %d", got)
	}
}
