package escrow

import (
	"encoding/json"
	"math/big"
)

// JSON encodings write every amount through Amount, as a decimal string.

func (j Job) MarshalJSON() ([]byte, error) {
	type plain Job
	return json.Marshal(struct {
		plain
		Locked *Amount `json:"locked"`
	}{plain(j), AmountOf(j.Locked)})
}

func (j *Job) UnmarshalJSON(b []byte) error {
	type plain Job
	aux := struct {
		*plain
		Locked *Amount `json:"locked"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	j.Locked = aux.Locked.Int()
	return nil
}

func (m Milestone) MarshalJSON() ([]byte, error) {
	type plain Milestone
	return json.Marshal(struct {
		plain
		Amount *Amount `json:"amount"`
	}{plain(m), AmountOf(m.Amount)})
}

func (m *Milestone) UnmarshalJSON(b []byte) error {
	type plain Milestone
	aux := struct {
		*plain
		Amount *Amount `json:"amount"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.Amount = aux.Amount.Int()
	return nil
}

func (r Release) MarshalJSON() ([]byte, error) {
	type plain Release
	return json.Marshal(struct {
		plain
		Amount *Amount `json:"amount"`
	}{plain(r), AmountOf(r.Amount)})
}

func (r *Release) UnmarshalJSON(b []byte) error {
	type plain Release
	aux := struct {
		*plain
		Amount *Amount `json:"amount"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Amount = aux.Amount.Int()
	return nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	balances := make(map[Address]*Amount, len(s.Balances))
	for addr, bal := range s.Balances {
		balances[addr] = AmountOf(bal)
	}
	return json.Marshal(struct {
		plain
		Balances map[Address]*Amount `json:"balances"`
	}{plain(s), balances})
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	type plain Snapshot
	aux := struct {
		*plain
		Balances map[Address]*Amount `json:"balances"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Balances = make(map[Address]*big.Int, len(aux.Balances))
	for addr, bal := range aux.Balances {
		s.Balances[addr] = AmountOf(bal.Int()).Int()
	}
	return nil
}

func (ev Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		Amount *Amount `json:"amount,omitempty"`
	}{plain(ev), optionalAmount(ev.Amount)})
}

func (ev *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	aux := struct {
		*plain
		Amount *Amount `json:"amount,omitempty"`
	}{plain: (*plain)(ev)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	ev.Amount = aux.Amount.Int()
	return nil
}
