package systems

import (
	"errors"
	"maps"
	"testing"
)

func TestRemoveResourcesIsAllOrNothing(t *testing.T) {
	res := map[string]int{"gold": 10, "wood": 1}

	out, err := RemoveResources(res, map[string]int{"gold": 5, "wood": 2})
	if !errors.Is(err, ErrInsufficientResources) {
		t.Fatalf("err = %v, want ErrInsufficientResources", err)
	}
	if out != nil {
		t.Fatalf("expected no partial state, got %v", out)
	}
	if res["gold"] != 10 {
		t.Fatal("input mutated")
	}

	out, err = RemoveResources(res, map[string]int{"gold": 5})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if out["gold"] != 5 || out["wood"] != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestTradeAtomicity(t *testing.T) {
	a := map[string]int{"gold": 10}
	b := map[string]int{"wood": 1}

	_, err := Trade(a, b, map[string]int{"gold": 5}, map[string]int{"wood": 3})
	if !errors.Is(err, ErrCounterpartyCannotPay) {
		t.Fatalf("err = %v", err)
	}
	if !maps.Equal(a, map[string]int{"gold": 10}) || !maps.Equal(b, map[string]int{"wood": 1}) {
		t.Fatalf("a trade leg was applied: %v %v", a, b)
	}

	res, err := Trade(a, b, map[string]int{"gold": 5}, map[string]int{"wood": 1})
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if res.Initiator["gold"] != 5 || res.Initiator["wood"] != 1 {
		t.Errorf("initiator = %v", res.Initiator)
	}
	if res.Counterparty["gold"] != 5 || res.Counterparty["wood"] != 0 {
		t.Errorf("counterparty = %v", res.Counterparty)
	}
}

func TestTradeRejectsNonPositiveAmounts(t *testing.T) {
	_, err := Trade(map[string]int{"gold": 10}, map[string]int{}, map[string]int{"gold": -5}, nil)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v", err)
	}
}

func TestSteal(t *testing.T) {
	res, err := Steal(map[string]int{}, map[string]int{"gold": 100}, []string{"gold"})
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.Thief["gold"] != 20 || res.Victim["gold"] != 80 {
		t.Fatalf("thief/victim = %d/%d, want 20/80", res.Thief["gold"], res.Victim["gold"])
	}

	res, err = Steal(map[string]int{}, map[string]int{"gold": 14, "gems": 7}, []string{"gold", "gems"})
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.Stolen["gold"] != 2 || res.Stolen["gems"] != 1 {
		t.Fatalf("stolen = %v", res.Stolen)
	}

	if _, err := Steal(map[string]int{}, map[string]int{"gold": 4}, []string{"gold"}); !errors.Is(err, ErrNothingToSteal) {
		t.Fatalf("err = %v, want ErrNothingToSteal", err)
	}
	if _, err := Steal(map[string]int{}, map[string]int{"gold": 100}, nil); !errors.Is(err, ErrNoCurrencies) {
		t.Fatalf("err = %v, want ErrNoCurrencies", err)
	}
}

func TestResourcesNeverNegative(t *testing.T) {
	a := map[string]int{"gold": 30}
	b := map[string]int{"gold": 12}
	ops := []func(){
		func() { a = AddResources(a, map[string]int{"gold": -50}) },
		func() {
			if r, err := Steal(a, b, []string{"gold"}); err == nil {
				a, b = r.Thief, r.Victim
			}
		},
		func() {
			if r, err := Trade(b, a, map[string]int{"gold": 3}, map[string]int{"gold": 1}); err == nil {
				b, a = r.Initiator, r.Counterparty
			}
		},
		func() {
			if r, err := RemoveResources(b, map[string]int{"gold": 7}); err == nil {
				b = r
			}
		},
	}
	for round := 0; round < 5; round++ {
		for _, op := range ops {
			op()
			for _, m := range []map[string]int{a, b} {
				for k, v := range m {
					if v < 0 {
						t.Fatalf("%s went negative: %d", k, v)
					}
				}
			}
		}
	}
}

func TestEarn(t *testing.T) {
	out, amt := Earn(map[string]int{"gold": 1}, map[string]int{"correctAnswer": 5}, "correctAnswer", "gold")
	if amt != 5 || out["gold"] != 6 {
		t.Fatalf("got %v %d", out, amt)
	}
	if _, amt := Earn(nil, nil, "gather", "gold"); amt != 0 {
		t.Fatalf("amt = %d", amt)
	}
}
