package email

const (
	subjectNewLeadFmt    = "New lead assigned: %s"
	subjectHighScoreFmt  = "Hot lead: %s scored %d"
	subjectSLAWarningFmt = "Respond soon: %s"
	subjectSLABreachFmt  = "Response window missed: %s"
	subjectEscalationFmt = "Lead escalated: %s"
	subjectGenericFmt    = "Lead update: %s"
)
