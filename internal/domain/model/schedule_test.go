package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAgentConfig() AgentConfig {
	return AgentConfig{
		AgentName: "echo",
		JobData:   json.RawMessage(`{"message": "tick"}`),
	}
}

func TestAgentConfigValidate(t *testing.T) {
	cfg := validAgentConfig()
	assert.NoError(t, cfg.Validate())

	cfg = validAgentConfig()
	cfg.AgentName = " "
	assert.ErrorContains(t, cfg.Validate(), "agent name is required")

	cfg = validAgentConfig()
	cfg.JobData = nil
	assert.ErrorContains(t, cfg.Validate(), "job data is required")

	cfg = validAgentConfig()
	cfg.Priority = intp(0)
	cfg.MaxRetries = intp(0)
	assert.NoError(t, cfg.Validate())

	cfg = validAgentConfig()
	cfg.Priority = intp(MaxPriority + 1)
	assert.ErrorContains(t, cfg.Validate(), "priority must be between")

	cfg = validAgentConfig()
	cfg.MaxRetries = intp(-1)
	assert.ErrorContains(t, cfg.Validate(), "max retries")
}

func TestCreateScheduleRequestValidate(t *testing.T) {
	req := CreateScheduleRequest{
		UserID:         "user-1",
		CronExpression: "0 * * * *",
		AgentConfig:    validAgentConfig(),
	}
	assert.NoError(t, req.Validate())

	missingUser := req
	missingUser.UserID = ""
	assert.ErrorContains(t, missingUser.Validate(), "user id is required")

	missingCron := req
	missingCron.CronExpression = "  "
	assert.ErrorContains(t, missingCron.Validate(), "cron expression is required")

	badAgent := req
	badAgent.AgentConfig.AgentName = ""
	assert.Error(t, badAgent.Validate())
}

func TestUpdateScheduleRequestEmpty(t *testing.T) {
	assert.True(t, (&UpdateScheduleRequest{}).Empty())

	enabled := false
	assert.False(t, (&UpdateScheduleRequest{Enabled: &enabled}).Empty())

	cfg := validAgentConfig()
	assert.False(t, (&UpdateScheduleRequest{AgentConfig: &cfg}).Empty())
}
