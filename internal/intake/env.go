package intake

const DefaultSubjectPrefix = "[Orca Lead]"

// Env is the email routing configuration checked before dispatch.
type Env struct {
	ToEmail          string
	Sender           string
	ConnectionString string
	SubjectPrefix    string
}

// Missing lists the unset variables by their deployment names.
func (e Env) Missing() []string {
	var missing []string
	if e.ToEmail == "" {
		missing = append(missing, "CONTACT_TO_EMAIL")
	}
	if e.Sender == "" {
		missing = append(missing, "ACS_EMAIL_SENDER")
	}
	if e.ConnectionString == "" {
		missing = append(missing, "ACS_EMAIL_CONNECTION_STRING")
	}
	return missing
}

func (e Env) subjectPrefix() string {
	if e.SubjectPrefix == "" {
		return DefaultSubjectPrefix
	}
	return e.SubjectPrefix
}
