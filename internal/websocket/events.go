package websocket

// Event is one realtime change notification fanned out to every connected
// family device. Type is "<entity>_<action>" so clients can switch on a
// single field; Entity and Action carry the parts separately.
type Event struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
}

const (
	EntityTask          = "task"
	EntityPlan          = "plan"
	EntityReward        = "reward"
	EntityRewardRequest = "reward_request"
	EntityChallenge     = "challenge"
	EntityUser          = "user"
)

func newEvent(entity, action string, id int64) Event {
	return Event{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
	}
}

// TaskEvent announces a task change (created, completed, approved, missed,
// forgiven, updated, deleted). ID 0 means a bulk change; clients refetch.
func TaskEvent(action string, taskID int64) Event {
	return newEvent(EntityTask, action, taskID)
}

func PlanEvent(action string, planID int64) Event {
	return newEvent(EntityPlan, action, planID)
}

func RewardEvent(action string, rewardID int64) Event {
	return newEvent(EntityReward, action, rewardID)
}

func RequestEvent(action string, requestID int64) Event {
	return newEvent(EntityRewardRequest, action, requestID)
}

func ChallengeEvent(action string, challengeID int64) Event {
	return newEvent(EntityChallenge, action, challengeID)
}

func MemberEvent(action string, userID int64) Event {
	return newEvent(EntityUser, action, userID)
}

// PointsEvent tells clients to refresh the given user's balances.
func PointsEvent(userID int64) Event {
	return newEvent(EntityUser, "points_changed", userID)
}
