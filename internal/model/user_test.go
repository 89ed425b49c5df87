package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_PrefersUKSpelling(t *testing.T) {
	tests := []struct {
		country string
		want    bool
	}{
		{"GB", true},
		{"UK", true},
		{"AU", true},
		{"US", false},
		{"CA", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run("country "+tt.country, func(t *testing.T) {
			u := &User{CountryCode: tt.country}
			assert.Equal(t, tt.want, u.PrefersUKSpelling())
		})
	}
}
