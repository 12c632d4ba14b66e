// Package pam implements the client-side extraction pipeline against the
// vault management REST API: authentication, resilient requests, and
// offset/limit pagination with duplicate detection.
package pam

import "strconv"

// Identifiable is implemented by every record type the paginator can drive.
// The identifier is what duplicate detection keys on.
type Identifiable interface {
	Identifier() string
}

// Page is the collection envelope every listing endpoint returns.
type Page[T any] struct {
	Value []T `json:"value"`
	Count int `json:"count"`
}

// SafeCreator identifies the principal that created a safe.
type SafeCreator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Safe is a named container of privileged accounts with its own
// retention and ownership policy.
type Safe struct {
	SafeName                  string      `json:"safeName"`
	Description               string      `json:"description"`
	Location                  string      `json:"location"`
	Creator                   SafeCreator `json:"creator"`
	OLACEnabled               bool        `json:"olacEnabled"`
	ManagingCPM               string      `json:"managingCPM"`
	NumberOfDaysRetention     *int64      `json:"numberOfDaysRetention"`
	NumberOfVersionsRetention *int64      `json:"numberOfVersionsRetention"`
	AutoPurgeEnabled          bool        `json:"autoPurgeEnabled"`
	CreationTime              int64       `json:"creationTime"`
	LastModificationTime      int64       `json:"lastModificationTime"`
}

func (s Safe) Identifier() string { return s.SafeName }

// SecretManagement describes how the platform manages an account's secret.
type SecretManagement struct {
	AutomaticManagementEnabled bool   `json:"automaticManagementEnabled"`
	ManualManagementReason     string `json:"manualManagementReason"`
	Status                     string `json:"status"`
	LastModifiedTime           int64  `json:"lastModifiedTime"`
	LastReconciledTime         int64  `json:"lastReconciledTime"`
	LastVerifiedTime           int64  `json:"lastVerifiedTime"`
}

// Account is a privileged-account record stored in a safe.
type Account struct {
	ID                        string            `json:"id"`
	Name                      string            `json:"name"`
	Address                   string            `json:"address"`
	UserName                  string            `json:"userName"`
	PlatformID                string            `json:"platformId"`
	SafeName                  string            `json:"safeName"`
	SecretType                string            `json:"secretType"`
	PlatformAccountProperties map[string]string `json:"platformAccountProperties"`
	SecretManagement          SecretManagement  `json:"secretManagement"`
	CreatedTime               int64             `json:"createdTime"`
}

func (a Account) Identifier() string { return a.ID }

// GroupMembership is one group a vault user belongs to.
type GroupMembership struct {
	GroupID   int64  `json:"groupID"`
	GroupName string `json:"groupName"`
	GroupType string `json:"groupType"`
}

// User is a vault user record from the extended-details listing.
type User struct {
	ID                 int64             `json:"id"`
	Username           string            `json:"username"`
	Source             string            `json:"source"`
	UserType           string            `json:"userType"`
	ComponentUser      bool              `json:"componentUser"`
	Suspended          bool              `json:"suspended"`
	EnableUser         bool              `json:"enableUser"`
	VaultAuthorization []string          `json:"vaultAuthorization"`
	GroupsMembership   []GroupMembership `json:"groupsMembership"`
}

func (u User) Identifier() string { return strconv.FormatInt(u.ID, 10) }
