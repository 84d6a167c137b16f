package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/mintaro/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_RejectsFormat(t *testing.T) {
	_, err := run(t, "demo", "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestDemo_JSON(t *testing.T) {
	out, err := run(t, "demo", "--format", "json")
	require.NoError(t, err)

	var res struct {
		Steps    []DemoStep      `json:"steps"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	codes := make(map[string]string)
	for _, s := range res.Steps {
		codes[s.Op] = string(s.Code)
	}
	assert.Equal(t, "NOT_APPROVED", codes["release milestone 1 before approval"])
	assert.Equal(t, "", codes["release milestone 1"])
	assert.Equal(t, "ALREADY_RELEASED", codes["release milestone 1 again"])
	assert.Equal(t, "NOT_FOUND", codes["release unknown milestone 3"])

	assert.JSONEq(t, `{
		"jobs": [{"id":1,"client":"0x1111111111111111111111111111111111111111","freelancer":"0x2222222222222222222222222222222222222222","locked":"70","milestone_count":2}],
		"milestones": [
			{"job_id":1,"milestone_id":1,"amount":"30","approved":true,"released":true},
			{"job_id":1,"milestone_id":2,"amount":"70","approved":false,"released":false}
		],
		"balances": {"0x2222222222222222222222222222222222222222": "30"}
	}`, string(res.Snapshot))
}

func TestDemo_Text(t *testing.T) {
	out, err := run(t, "demo", "--amount", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "release milestone 1 before approval")
	assert.Contains(t, out, "NOT_APPROVED")
	assert.Contains(t, out, "ok (100)")
	assert.Contains(t, out, "job 1 locked 0 across 1 milestones")
	assert.Contains(t, out, "balance 0x2222222222222222222222222222222222222222 100")
}

func TestDemo_BadParty(t *testing.T) {
	_, err := run(t, "demo", "--freelancer", "0x0000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"--secret", "s3cret", "--role", "admin", "--format", "json")
	require.NoError(t, err)

	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", resp.Address)

	claims, err := auth.NewIssuer("s3cret", time.Hour).Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestToken_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "0x1111111111111111111111111111111111111111")
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = run(t, "token", "0x1111111111111111111111111111111111111111", "--secret", "x", "--role", "root")
	assert.ErrorContains(t, err, "invalid role")

	_, err = run(t, "token", "0x12", "--secret", "x")
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	out, err := run(t, "address", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed\n0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed\n", out)

	_, err = run(t, "address", "0x5aAeb6053f3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err, "bad checksum")
}
