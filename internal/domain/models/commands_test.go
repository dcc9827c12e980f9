package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in       string
		wantType CommandType
		wantArgs []string
	}{
		{"", CommandUnknown, nil},
		{"sold 3.5g to jake for 60", CommandSale, []string{"sold", "3.5g", "to", "jake", "for", "60"}},
		{"OK", CommandConfirm, nil},
		{"/confirm", CommandConfirm, nil},
		{"/pay 1a2b3c4d 20", CommandPay, []string{"1a2b3c4d", "20"}},
		{"/PRICE 1a2b 50", CommandPrice, []string{"1a2b", "50"}},
		{"/set customer Jake", CommandSet, []string{"customer", "Jake"}},
		{"/ticks", CommandTicks, nil},
		{"/restock 12", CommandUnknown, []string{"12"}},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			cmd := ParseCommand(tc.in)
			assert.Equal(t, tc.wantType, cmd.Type)
			assert.Equal(t, tc.wantArgs, cmd.Args)
		})
	}
}
