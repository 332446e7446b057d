package catalog

import (
	"encoding/json"
	"testing"
)

func TestProductID_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ProductID
	}{
		{`42`, 42},
		{`"42"`, 42},
	}
	for _, tt := range tests {
		var id ProductID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, id, tt.want)
		}
	}

	var id ProductID
	if err := json.Unmarshal([]byte(`"abc"`), &id); err == nil {
		t.Error("Unmarshal(\"abc\") expected error")
	}
}

func TestParseProductID(t *testing.T) {
	t.Parallel()

	if id, err := ParseProductID("7"); err != nil || id != 7 {
		t.Errorf("ParseProductID(7) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "x", "0", "-3"} {
		if _, err := ParseProductID(bad); err == nil {
			t.Errorf("ParseProductID(%q) expected error", bad)
		}
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Amount
	}{
		{`"12.50"`, "12.50"},
		{`12.5`, "12.5"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var a Amount
		if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if a != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, a, tt.want)
		}
	}
	if got := Amount("12.50").Float(); got != 12.5 {
		t.Errorf("Float() = %v, want 12.5", got)
	}
}

func TestCart_Quantities(t *testing.T) {
	t.Parallel()

	raw := `{"items":[
		{"product":{"id":42,"name":"Mug"},"quantity":2,"sub_total":"20.00"},
		{"product":{"id":"7","name":"Tea"},"quantity":1,"sub_total":5},
		{"product":{"id":9},"quantity":0}
	],"item_count":3,"grand_total":"25.00"}`

	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	q := c.Quantities()
	if len(q) != 2 || q[42] != 2 || q[7] != 1 {
		t.Errorf("Quantities() = %v, want map[7:1 42:2]", q)
	}
	if c.GrandTotal != "25.00" {
		t.Errorf("GrandTotal = %q", c.GrandTotal)
	}
}
