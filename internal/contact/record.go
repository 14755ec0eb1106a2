package contact

// CoreFields holds the five core attributes. An empty string means absent.
type CoreFields struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	AgentUID  string `json:"agentUid,omitempty"`
}

// Get returns the value of attr and whether it is set.
func (c *CoreFields) Get(attr CoreAttribute) (string, bool) {
	var v string
	switch attr {
	case FirstName:
		v = c.FirstName
	case LastName:
		v = c.LastName
	case Phone:
		v = c.Phone
	case Email:
		v = c.Email
	case AgentUID:
		v = c.AgentUID
	}
	return v, v != ""
}

// Set assigns attr. Unknown attributes are ignored.
func (c *CoreFields) Set(attr CoreAttribute, v string) {
	switch attr {
	case FirstName:
		c.FirstName = v
	case LastName:
		c.LastName = v
	case Phone:
		c.Phone = v
	case Email:
		c.Email = v
	case AgentUID:
		c.AgentUID = v
	}
}

// CustomValues is an insertion-ordered map from custom field id to value.
type CustomValues struct {
	keys   []string
	values map[string]string
}

// Set assigns id, keeping its first insertion position.
func (c *CustomValues) Set(id, v string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, ok := c.values[id]; !ok {
		c.keys = append(c.keys, id)
	}
	c.values[id] = v
}

// Get returns the value for id.
func (c *CustomValues) Get(id string) (string, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Keys returns ids in insertion order.
func (c *CustomValues) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of ids.
func (c *CustomValues) Len() int {
	return len(c.keys)
}

// Attributes is the flat attribute set of one transformed row.
type Attributes struct {
	Core   CoreFields
	Custom CustomValues
}

// Set assigns the value under the target's key. Unmapped and new-field
// targets are ignored.
func (a *Attributes) Set(t TargetRef, v string) {
	switch t.Kind {
	case TargetCore:
		a.Core.Set(t.Core, v)
	case TargetExistingCustom:
		a.Custom.Set(t.FieldID, v)
	}
}

// Len counts the populated attributes.
func (a *Attributes) Len() int {
	n := a.Custom.Len()
	for _, attr := range coreAttributes {
		if _, ok := a.Core.Get(attr); ok {
			n++
		}
	}
	return n
}

// Document flattens the attributes into the store's document form, keyed by
// core attribute name or custom field id.
func (a *Attributes) Document() map[string]string {
	doc := make(map[string]string, a.Len())
	for _, attr := range coreAttributes {
		if v, ok := a.Core.Get(attr); ok {
			doc[string(attr)] = v
		}
	}
	for _, id := range a.Custom.keys {
		doc[id] = a.Custom.values[id]
	}
	return doc
}

// ContactRecord is a stored contact document.
type ContactRecord struct {
	ID   string            `json:"id"`
	Data map[string]string `json:"data"`
}

// Get returns the value stored under key.
func (r ContactRecord) Get(key string) string {
	return r.Data[key]
}

// ImportStats accumulates per-row outcomes of one import run. Rows that
// produce no attributes are counted in Skipped only, so
// Created+Merged+Errors+Skipped == Total once a run completes.
type ImportStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Merged  int `json:"merged"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Processed returns the number of rows with an outcome so far.
func (s ImportStats) Processed() int {
	return s.Created + s.Merged + s.Errors + s.Skipped
}

// Add accumulates other into s. Total is not summed.
func (s *ImportStats) Add(other ImportStats) {
	s.Created += other.Created
	s.Merged += other.Merged
	s.Errors += other.Errors
	s.Skipped += other.Skipped
}
