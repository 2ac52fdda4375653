package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIDUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"number", `{"matchedBookingId": 42}`, "42"},
		{"string number", `{"matchedBookingId": "42"}`, "42"},
		{"prefixed string", `{"matchedBookingId": "review-42"}`, "review-42"},
		{"null", `{"matchedBookingId": null}`, ""},
		{"absent", `{}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b UnmatchedBooking
			require.NoError(t, json.Unmarshal([]byte(tc.in), &b))
			assert.Equal(t, tc.want, b.MatchedBookingID.String())
		})
	}
}

func TestFlexIDRejectsNonScalar(t *testing.T) {
	var b UnmatchedBooking
	err := json.Unmarshal([]byte(`{"matchedBookingId": {"id": 1}}`), &b)
	assert.Error(t, err)
}
