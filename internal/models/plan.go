package models

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanSolo       Plan = "solo"
	PlanTeam       Plan = "team"
	PlanEnterprise Plan = "enterprise"
)

// ValidPlans is the set of all valid plans, ordered from least to most powerful.
var ValidPlans = []Plan{
	PlanFree,
	PlanSolo,
	PlanTeam,
	PlanEnterprise,
}

// IsValid returns true if the plan is recognized.
func (p Plan) IsValid() bool {
	for _, v := range ValidPlans {
		if p == v {
			return true
		}
	}
	return false
}

// Feature is a gate-able capability key.
type Feature string

const (
	FeatureUploadTips       Feature = "upload_tips"
	FeatureCommunitySharing Feature = "community_sharing"
	FeatureBasicQueries     Feature = "basic_queries"

	FeatureUploadPhotos        Feature = "upload_photos"
	FeatureUploadFiles         Feature = "upload_files"
	FeatureBrainPrivateStorage Feature = "brain_private_storage"
	FeatureExtendedQueries     Feature = "extended_queries"

	FeatureOrganizationSharing Feature = "organization_sharing"
	FeatureTeamAccess          Feature = "team_access"
	FeatureUnlimitedQueries    Feature = "unlimited_queries"
	FeatureUnlimitedUploads    Feature = "unlimited_uploads"
	FeatureSharedBrain         Feature = "shared_brain"

	FeatureSSO                Feature = "sso"
	FeatureAuditLogs          Feature = "audit_logs"
	FeaturePrioritySupport    Feature = "priority_support"
	FeatureCustomIntegrations Feature = "custom_integrations"
)

// ResetPeriod is the window over which a quota is counted.
type ResetPeriod string

const (
	PeriodDaily   ResetPeriod = "daily"
	PeriodMonthly ResetPeriod = "monthly"
)
