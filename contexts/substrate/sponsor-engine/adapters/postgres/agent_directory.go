package postgresadapter

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"oxsubstrate/contexts/substrate/sponsor-engine/domain/entities"
	"oxsubstrate/contexts/substrate/sponsor-engine/ports"

	"gorm.io/gorm"
)

// agentRow is a read-only projection of agent-engine's agents+agent_capacity
// tables, queried directly rather than through a domain import — the same
// cross-context read pattern agent-engine uses for environment-service's
// table.
type agentRow struct {
	AgentID           string `gorm:"column:agent_id"`
	Status            string `gorm:"column:status"`
	CognitionProvider string `gorm:"column:cognition_provider"`
	ThrottleProfile   string `gorm:"column:throttle_profile"`
	DeploymentTarget  string `gorm:"column:deployment_target"`
	Balance           int    `gorm:"column:balance"`
}

// AgentDirectory implements ports.AgentDirectory against agent-engine's
// tables.
type AgentDirectory struct {
	db *gorm.DB
}

// NewAgentDirectory builds an AgentDirectory.
func NewAgentDirectory(db *gorm.DB) *AgentDirectory {
	return &AgentDirectory{db: db}
}

func (d *AgentDirectory) ListAgentsBySponsor(ctx context.Context, sponsorID string) ([]ports.AgentView, error) {
	var rows []agentRow
	err := d.db.WithContext(ctx).
		Table("agents").
		Select("agents.agent_id, agents.status, agents.cognition_provider, agents.throttle_profile, agents.deployment_target, agent_capacity.balance").
		Joins("LEFT JOIN agent_capacity ON agent_capacity.agent_id = agents.agent_id").
		Where("agents.sponsor_id = ?", strings.TrimSpace(sponsorID)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.AgentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.AgentView{
			AgentID:           row.AgentID,
			Status:            row.Status,
			Balance:           int64(row.Balance),
			CognitionProvider: row.CognitionProvider,
			ThrottleProfile:   row.ThrottleProfile,
			DeploymentTarget:  row.DeploymentTarget,
		})
	}
	return out, nil
}

// ApplyPolicyAction applies a matched sponsor policy rule's action directly
// against agent-engine's agents table, returning a diff for the run log.
// This writes to another context's table (rather than calling into its
// application layer) because the policy sweep is agent-engine's only
// sanctioned external writer, playing the role agent-engine's admission
// pipeline plays for its own mutations: a single, narrowly-scoped SQL
// statement, not a domain import.
func (d *AgentDirectory) ApplyPolicyAction(ctx context.Context, agentID string, action entities.PolicyAction) (map[string]any, error) {
	agentID = strings.TrimSpace(agentID)
	switch action.Type {
	case entities.ActionSetProvider:
		if err := d.db.WithContext(ctx).Table("agents").Where("agent_id = ?", agentID).
			Update("cognition_provider", action.Value).Error; err != nil {
			return nil, err
		}
		return map[string]any{"cognition_provider": action.Value}, nil
	case entities.ActionSetProfile:
		if err := d.db.WithContext(ctx).Table("agents").Where("agent_id = ?", agentID).
			Update("throttle_profile", action.Value).Error; err != nil {
			return nil, err
		}
		return map[string]any{"throttle_profile": action.Value}, nil
	case entities.ActionRedeploy:
		if err := d.db.WithContext(ctx).Table("agents").Where("agent_id = ?", agentID).
			Update("deployment_target", action.Value).Error; err != nil {
			return nil, err
		}
		return map[string]any{"deployment_target": action.Value}, nil
	case entities.ActionAllocateDelta:
		delta, err := parseDelta(action.Value)
		if err != nil {
			return nil, err
		}
		if err := d.db.WithContext(ctx).Table("agent_capacity").Where("agent_id = ?", agentID).
			Update("balance", gorm.Expr("agent_capacity.balance + ?", delta)).Error; err != nil {
			return nil, err
		}
		return map[string]any{"balance_delta": delta}, nil
	default:
		return nil, errors.New("unsupported policy action type")
	}
}

func parseDelta(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
