// ABOUTME: Inline-button payload parsing into a closed set of command types
// ABOUTME: Malformed payloads fail here and never reach lifecycle state logic

package moderation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCallback is returned for payloads that don't parse into a command
var ErrUnknownCallback = errors.New("unknown callback payload")

// Callback payload prefixes
const (
	answerPrefix = "cap"
	reviewPrefix = "adm"
	panelPrefix  = "panel"
)

// Command is a parsed inline-button payload. The concrete types are
// AnswerCommand, ReviewCommand and PanelCommand; nothing else implements it.
type Command interface {
	isCommand()
}

// AnswerCommand is an applicant tapping one of the challenge options
type AnswerCommand struct {
	RequestID int64
	Answer    int64
}

// ReviewCommand is a reviewer approving or declining a request
type ReviewCommand struct {
	RequestID int64
	Approve   bool
}

// PanelAction is a section of the admin panel
type PanelAction string

const (
	PanelDashboard  PanelAction = "dashboard"
	PanelPending    PanelAction = "pending"
	PanelChannel    PanelAction = "channel"
	PanelToggleMode PanelAction = "toggle_mode"
)

// PanelCommand is a reviewer navigating the admin panel
type PanelCommand struct {
	Action PanelAction
}

func (AnswerCommand) isCommand() {}
func (ReviewCommand) isCommand() {}
func (PanelCommand) isCommand()  {}

// ParseCallback parses an inline-button payload into a Command.
//
// Payload formats:
//
//	cap:<request>:<answer>         challenge option
//	adm:approve|decline:<request>  reviewer decision
//	panel:<section>                panel navigation
func ParseCallback(data string) (Command, error) {
	parts := strings.Split(data, ":")

	switch parts[0] {
	case answerPrefix:
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		requestID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad request id in %q", ErrUnknownCallback, data)
		}
		answer, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad answer in %q", ErrUnknownCallback, data)
		}
		return AnswerCommand{RequestID: requestID, Answer: answer}, nil

	case reviewPrefix:
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		if parts[1] != "approve" && parts[1] != "decline" {
			return nil, fmt.Errorf("%w: bad action in %q", ErrUnknownCallback, data)
		}
		requestID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad request id in %q", ErrUnknownCallback, data)
		}
		return ReviewCommand{RequestID: requestID, Approve: parts[1] == "approve"}, nil

	case panelPrefix:
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		switch PanelAction(parts[1]) {
		case PanelDashboard, PanelPending, PanelChannel, PanelToggleMode:
			return PanelCommand{Action: PanelAction(parts[1])}, nil
		}
		return nil, fmt.Errorf("%w: bad panel section in %q", ErrUnknownCallback, data)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
}

// AnswerCallback builds the payload for a challenge option button
func AnswerCallback(requestID, answer int64) string {
	return fmt.Sprintf("%s:%d:%d", answerPrefix, requestID, answer)
}

// ReviewCallback builds the payload for a reviewer decision button
func ReviewCallback(requestID int64, approve bool) string {
	action := "decline"
	if approve {
		action = "approve"
	}
	return fmt.Sprintf("%s:%s:%d", reviewPrefix, action, requestID)
}

// PanelCallback builds the payload for a panel navigation button
func PanelCallback(action PanelAction) string {
	return fmt.Sprintf("%s:%s", panelPrefix, action)
}
