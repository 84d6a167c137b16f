package escrow

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2^70 wei does not survive a round trip through a float64.
var bigWei, _ = new(big.Int).SetString("1180591620717411303424", 10)

func TestAmount_EncodesAsDecimalString(t *testing.T) {
	out, err := json.Marshal(AmountOf(bigWei))
	require.NoError(t, err)
	assert.Equal(t, `"1180591620717411303424"`, string(out))

	out, err = json.Marshal(AmountOf(nil))
	require.NoError(t, err)
	assert.Equal(t, `"0"`, string(out))
}

func TestAmount_Decodes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"1180591620717411303424"`, "1180591620717411303424"},
		{`1180591620717411303424`, "1180591620717411303424"},
		{`"0"`, "0"},
	}
	for _, tt := range tests {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(tt.in), &a), tt.in)
		assert.Equal(t, tt.want, a.Int().String())
	}

	for _, bad := range []string{`"1.5"`, `"abc"`, `true`} {
		var a Amount
		assert.Error(t, json.Unmarshal([]byte(bad), &a), bad)
	}
}

func TestRecords_KeepLargeAmounts(t *testing.T) {
	job := Job{ID: 1, Client: clientAddr, Freelancer: freelancerAddr, Locked: bigWei, MilestoneCount: 1}
	out, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"client":"`+string(clientAddr)+`","freelancer":"`+string(freelancerAddr)+`","milestone_count":1,"locked":"1180591620717411303424"}`, string(out))

	var back Job
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, 0, bigWei.Cmp(back.Locked))
	assert.Equal(t, job.Client, back.Client)

	snap := Snapshot{
		Jobs:       []Job{job},
		Milestones: []Milestone{{JobID: 1, MilestoneID: 1, Amount: bigWei}},
		Balances:   map[Address]*big.Int{freelancerAddr: bigWei},
	}
	out, err = json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, 0, bigWei.Cmp(decoded.Milestones[0].Amount))
	assert.Equal(t, 0, bigWei.Cmp(decoded.Balances[freelancerAddr]))
}

func TestEvent_AmountOptional(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := json.Marshal(Event{Kind: EventMilestoneApproved, Backend: "local", JobID: 1, MilestoneID: 1, At: at})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "amount")

	out, err = json.Marshal(Event{Kind: EventWithdrawn, Backend: "local", Freelancer: freelancerAddr, Amount: bigWei, At: at})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"amount":"1180591620717411303424"`)

	var ev Event
	require.NoError(t, json.Unmarshal(out, &ev))
	assert.Equal(t, EventWithdrawn, ev.Kind)
	assert.Equal(t, 0, bigWei.Cmp(ev.Amount))
}
