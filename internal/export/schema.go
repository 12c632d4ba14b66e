// Package export converts domain records into CSV rows and streams them to
// disk without buffering whole datasets.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/vaultscope/vaultscope/internal/pam"
)

// Placeholder renders absent optional values. A fixed marker avoids the
// empty-vs-null ambiguity a blank cell would introduce.
const Placeholder = "N/A"

// Well-known platform properties promoted to their own account columns.
var accountPropertyColumns = []string{
	"LogonDomain",
	"Port",
	"Database",
	"DSN",
	"HostName",
	"Location",
	"OwnerName",
	"UseSSL",
	"PSMRemoteMachine",
	"AccountDescription",
}

// AccountColumns is the fixed schema of the accounts report.
var AccountColumns = append([]string{
	"ID",
	"Name",
	"Address",
	"UserName",
	"PlatformID",
	"SafeName",
	"SecretType",
	"AutomaticManagement",
	"ManualManagementReason",
	"ManagementStatus",
	"LastModified",
	"LastReconciled",
	"LastVerified",
	"Created",
}, accountPropertyColumns...)

// SafeColumns is the fixed schema of the safes report.
var SafeColumns = []string{
	"SafeName",
	"Description",
	"Location",
	"CreatorID",
	"CreatorName",
	"OLACEnabled",
	"ManagingCPM",
	"DaysRetention",
	"VersionsRetention",
	"AutoPurge",
	"Created",
	"LastModified",
}

// UserColumns is the fixed schema of the user-details report.
var UserColumns = []string{
	"ID",
	"Username",
	"Source",
	"UserType",
	"ComponentUser",
	"Suspended",
	"Enabled",
	"VaultAuthorizations",
	"GroupCount",
}

// UserGroupColumns is the fixed schema of the group-membership report, one
// row per (user, group) pair.
var UserGroupColumns = []string{
	"UserID",
	"Username",
	"GroupID",
	"GroupName",
	"GroupType",
}

// AccountRow projects an account into the accounts schema.
func AccountRow(a pam.Account) []string {
	row := []string{
		orPlaceholder(a.ID),
		orPlaceholder(a.Name),
		orPlaceholder(a.Address),
		orPlaceholder(a.UserName),
		orPlaceholder(a.PlatformID),
		orPlaceholder(a.SafeName),
		orPlaceholder(a.SecretType),
		strconv.FormatBool(a.SecretManagement.AutomaticManagementEnabled),
		orPlaceholder(a.SecretManagement.ManualManagementReason),
		orPlaceholder(a.SecretManagement.Status),
		formatEpoch(a.SecretManagement.LastModifiedTime),
		formatEpoch(a.SecretManagement.LastReconciledTime),
		formatEpoch(a.SecretManagement.LastVerifiedTime),
		formatEpoch(a.CreatedTime),
	}
	for _, prop := range accountPropertyColumns {
		row = append(row, orPlaceholder(a.PlatformAccountProperties[prop]))
	}
	return row
}

// SafeRow projects a safe into the safes schema.
func SafeRow(s pam.Safe) []string {
	return []string{
		orPlaceholder(s.SafeName),
		orPlaceholder(s.Description),
		orPlaceholder(s.Location),
		orPlaceholder(s.Creator.ID),
		orPlaceholder(s.Creator.Name),
		strconv.FormatBool(s.OLACEnabled),
		orPlaceholder(s.ManagingCPM),
		formatOptionalInt(s.NumberOfDaysRetention),
		formatOptionalInt(s.NumberOfVersionsRetention),
		strconv.FormatBool(s.AutoPurgeEnabled),
		formatEpoch(s.CreationTime),
		formatEpoch(s.LastModificationTime),
	}
}

// UserRow projects a user into the user-details schema.
func UserRow(u pam.User) []string {
	auths := Placeholder
	if len(u.VaultAuthorization) > 0 {
		auths = strings.Join(u.VaultAuthorization, ";")
	}
	return []string{
		strconv.FormatInt(u.ID, 10),
		orPlaceholder(u.Username),
		orPlaceholder(u.Source),
		orPlaceholder(u.UserType),
		strconv.FormatBool(u.ComponentUser),
		strconv.FormatBool(u.Suspended),
		strconv.FormatBool(u.EnableUser),
		auths,
		strconv.Itoa(len(u.GroupsMembership)),
	}
}

// UserGroupRows projects a user's memberships into the group schema.
func UserGroupRows(u pam.User) [][]string {
	rows := make([][]string, 0, len(u.GroupsMembership))
	for _, g := range u.GroupsMembership {
		rows = append(rows, []string{
			strconv.FormatInt(u.ID, 10),
			orPlaceholder(u.Username),
			strconv.FormatInt(g.GroupID, 10),
			orPlaceholder(g.GroupName),
			orPlaceholder(g.GroupType),
		})
	}
	return rows
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatInt(*v, 10)
}

// formatEpoch renders an epoch-seconds timestamp as a calendar date in UTC.
func formatEpoch(secs int64) string {
	if secs <= 0 {
		return Placeholder
	}
	return time.Unix(secs, 0).UTC().Format("2006-01-02 15:04:05")
}
