package server

// ScopeQuery selects the day and workspace of a read.
type ScopeQuery struct {
	Date        string `query:"date" doc:"Calendar date (YYYY-MM-DD), defaults to today"`
	WorkspaceID string `query:"workspace_id" doc:"Workspace scope, all workspaces when empty"`
}

type BriefingQuery struct {
	Date        string `query:"date" doc:"Calendar date (YYYY-MM-DD), defaults to today"`
	WorkspaceID string `query:"workspace_id" doc:"Workspace scope, all workspaces when empty"`
	Strict      bool   `query:"strict" doc:"Only suggest tasks with a concrete title, estimate and done criterion"`
}

type CommitTop3Request struct {
	TaskIDs []string `json:"taskIds"`
	Note    string   `json:"note,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
