package entity

const (
	StatusResolved   = "Resolved"
	StatusUnresolved = "Unresolved"

	// LabelNormal marks benign traffic; every other label is an alert.
	LabelNormal = "normal"
)

// ValidStatus reports whether s is one of the two allowed statuses.
func ValidStatus(s string) bool {
	return s == StatusResolved || s == StatusUnresolved
}

// Key addresses one record: ConnectionID is the partition key, SrcIP the
// sort key.
type Key struct {
	ConnectionID string `dynamodbav:"ConnectionID" json:"ConnectionID"`
	SrcIP        string `dynamodbav:"SrcIP" json:"SrcIP"`
}

func (k Key) Valid() bool {
	return k.ConnectionID != "" && k.SrcIP != ""
}

// Record is one IDS event as stored in the table. Labels are produced by the
// ingestion pipeline and treated as opaque strings.
type Record struct {
	ConnectionID  string  `dynamodbav:"ConnectionID" json:"ConnectionID"`
	SrcIP         string  `dynamodbav:"SrcIP" json:"SrcIP"`
	DstIP         string  `dynamodbav:"DstIP,omitempty" json:"DstIP"`
	ProtocolType  string  `dynamodbav:"ProtocolType,omitempty" json:"ProtocolType"`
	Service       string  `dynamodbav:"Service,omitempty" json:"Service"`
	Flag          string  `dynamodbav:"Flag,omitempty" json:"Flag"`
	Timestamp     string  `dynamodbav:"Timestamp,omitempty" json:"Timestamp"`
	Label         string  `dynamodbav:"Label,omitempty" json:"Label"`
	Owner         *string `dynamodbav:"Owner,omitempty" json:"Owner"`
	Status        string  `dynamodbav:"Status,omitempty" json:"Status"`
	LastUpdatedBy *string `dynamodbav:"LastUpdatedBy,omitempty" json:"LastUpdatedBy"`
	SrcBytes      int64   `dynamodbav:"SrcBytes" json:"SrcBytes"`
	DstBytes      int64   `dynamodbav:"DstBytes" json:"DstBytes"`
	Duration      float64 `dynamodbav:"Duration" json:"Duration"`
	Land          int     `dynamodbav:"Land" json:"Land"`
	SerrorRate    float64 `dynamodbav:"SerrorRate" json:"SerrorRate"`
	RerrorRate    float64 `dynamodbav:"RerrorRate" json:"RerrorRate"`
	SameSrvRate   float64 `dynamodbav:"SameSrvRate" json:"SameSrvRate"`
	DiffSrvRate   float64 `dynamodbav:"DiffSrvRate" json:"DiffSrvRate"`
}

func (r *Record) Key() Key {
	return Key{ConnectionID: r.ConnectionID, SrcIP: r.SrcIP}
}

// IsAlert reports whether the record carries a non-normal label. A record
// without a label is not an alert, matching `Label <> :normal` on a missing
// attribute.
func (r *Record) IsAlert() bool {
	return r.Label != "" && r.Label != LabelNormal
}

// AlertView is the alert listing projection. Absent owner and updater are
// rendered as placeholders.
type AlertView struct {
	ConnectionID  string  `json:"ConnectionID"`
	SrcIP         string  `json:"SrcIP"`
	DstIP         string  `json:"DstIP"`
	ProtocolType  string  `json:"ProtocolType"`
	Service       string  `json:"Service"`
	Status        string  `json:"Status"`
	Timestamp     string  `json:"Timestamp"`
	Label         string  `json:"Label"`
	Owner         string  `json:"Owner"`
	LastUpdatedBy string  `json:"LastUpdatedBy"`
	SrcBytes      int64   `json:"SrcBytes"`
	DstBytes      int64   `json:"DstBytes"`
	SerrorRate    float64 `json:"SerrorRate"`
	DiffSrvRate   float64 `json:"DiffSrvRate"`
	SameSrvRate   float64 `json:"SameSrvRate"`
	RerrorRate    float64 `json:"RerrorRate"`
	Flag          string  `json:"Flag"`
	Land          int     `json:"Land"`
	Duration      float64 `json:"Duration"`
}

func (r *Record) AlertView() AlertView {
	owner := "-"
	if r.Owner != nil && *r.Owner != "" {
		owner = *r.Owner
	}
	updatedBy := "N/A"
	if r.LastUpdatedBy != nil && *r.LastUpdatedBy != "" {
		updatedBy = *r.LastUpdatedBy
	}
	status := r.Status
	if status == "" {
		status = StatusUnresolved
	}
	return AlertView{
		ConnectionID:  r.ConnectionID,
		SrcIP:         r.SrcIP,
		DstIP:         r.DstIP,
		ProtocolType:  r.ProtocolType,
		Service:       r.Service,
		Status:        status,
		Timestamp:     r.Timestamp,
		Label:         r.Label,
		Owner:         owner,
		LastUpdatedBy: updatedBy,
		SrcBytes:      r.SrcBytes,
		DstBytes:      r.DstBytes,
		SerrorRate:    r.SerrorRate,
		DiffSrvRate:   r.DiffSrvRate,
		SameSrvRate:   r.SameSrvRate,
		RerrorRate:    r.RerrorRate,
		Flag:          r.Flag,
		Land:          r.Land,
		Duration:      r.Duration,
	}
}

// LogFilter narrows a log scan. SourceIP matches as a substring; the other
// fields match exactly. Empty fields are ignored.
type LogFilter struct {
	SourceIP      string
	DestinationIP string
	Protocol      string
}

func (f LogFilter) Empty() bool {
	return f.SourceIP == "" && f.DestinationIP == "" && f.Protocol == ""
}
