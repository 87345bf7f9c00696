package chat

type MemberType string

const (
	MemberTypeProgram MemberType = "PROGRAM"
	MemberTypeHuman   MemberType = "HUMAN"
)

// Member is a chat participant, human or program.
type Member struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Type          MemberType `json:"type"`
	SystemMessage string     `json:"systemMessage,omitempty"`
	Description   string     `json:"description,omitempty"`
}

func (m Member) IsProgram() bool {
	return m.Type == MemberTypeProgram
}

func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Identity is the local user on whose behalf the client acts.
type Identity struct {
	UserID string
}

func NewIdentity(userID string) Identity {
	return Identity{UserID: userID}
}
