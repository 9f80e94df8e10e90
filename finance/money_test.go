package finance

import "testing"

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"-10.005", "-10"},
		{"-10.0051", "-10.01"},
		{"-10.004", "-10"},
		{"0.005", "0.01"},
		{"-0.005", "0"},
		{"2.675", "2.68"},
	}
	for _, c := range cases {
		if got := RoundMoney(dec(c.in)); !got.Equal(dec(c.want)) {
			t.Errorf("RoundMoney(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestCeilToFive(t *testing.T) {
	if got := CeilToFive(dec("146.25")); !got.Equal(dec("150")) {
		t.Errorf("CeilToFive(146.25) = %s", got)
	}
	if got := CeilToFive(dec("150")); !got.Equal(dec("150")) {
		t.Errorf("CeilToFive(150) = %s", got)
	}
}
