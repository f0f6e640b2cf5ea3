// ABOUTME: Tests for the decision gate over the chat join request API.

package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Admit(t *testing.T) {
	stub := &stubAPI{}
	g := &Gate{api: stub}

	require.NoError(t, g.Admit(context.Background(), testCommunityID, applicantID))

	approvals := stub.approvals()
	require.Len(t, approvals, 1)
	assert.Equal(t, testCommunityID, approvals[0].ChatID)
	assert.Equal(t, applicantID, approvals[0].UserID)
	assert.Empty(t, stub.declines())
}

func TestGate_Reject(t *testing.T) {
	stub := &stubAPI{}
	g := &Gate{api: stub}

	require.NoError(t, g.Reject(context.Background(), testCommunityID, applicantID))

	declines := stub.declines()
	require.Len(t, declines, 1)
	assert.Equal(t, testCommunityID, declines[0].ChatID)
	assert.Equal(t, applicantID, declines[0].UserID)
	assert.Empty(t, stub.approvals())
}

func TestGate_RequestErrors(t *testing.T) {
	stub := &stubAPI{requestErr: errors.New("bad gateway")}
	g := &Gate{api: stub}

	err := g.Admit(context.Background(), testCommunityID, applicantID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approveChatJoinRequest")

	err = g.Reject(context.Background(), testCommunityID, applicantID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declineChatJoinRequest")
}
