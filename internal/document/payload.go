package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrLoadFailed marks a load response with a nonzero code or a transport
// failure while fetching it.
var ErrLoadFailed = errors.New("load failed")

// DefaultLoadFailure is shown when the server gives no message.
const DefaultLoadFailure = "[E0] 数据加载失败。"

// LoadResponse is the payload returned by the load port.
type LoadResponse struct {
	Code    int       `json:"Code"`
	Message string    `json:"Message,omitempty"`
	Data    *PlanData `json:"Data,omitempty"`
}

// PlanData carries the stored items plus whatever metadata the host
// attached; the metadata is passed back untouched on save.
type PlanData struct {
	Items []LoadItem
	Meta  map[string]json.RawMessage
}

// LoadItem is one stored shape group.
type LoadItem struct {
	ID   string   `json:"Id"`
	Type ItemType `json:"Type"`
	Info Info     `json:"Info"`
}

// SaveRequest is the payload accepted by the save port.
type SaveRequest struct {
	Items []SaveItem
	Meta  map[string]json.RawMessage
}

// SaveItem is one shape group as written by the editor.
type SaveItem struct {
	ID   string   `json:"id"`
	Type ItemType `json:"type"`
	Name string   `json:"name"`
	Info Info     `json:"info"`
}

// ItemType is 0 for house and 1 for unit. It decodes from a number or a
// numeric string.
type ItemType int

func (t *ItemType) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = ItemType(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode item type: %w", err)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		n = 0
	}
	*t = ItemType(n)
	return nil
}

// Info is a serialized group tree. On the wire it is a JSON string
// holding the tree; a bare object is accepted as well.
type Info []byte

func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(i))
}

func (i *Info) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Info(s)
		return nil
	}
	*i = append((*i)[:0], data...)
	return nil
}

func (d PlanData) MarshalJSON() ([]byte, error) {
	items := d.Items
	if items == nil {
		items = []LoadItem{}
	}
	return marshalWithItems(d.Meta, items)
}

func (d *PlanData) UnmarshalJSON(data []byte) error {
	meta, items, err := splitItems(data)
	if err != nil {
		return err
	}
	d.Meta = meta
	d.Items = nil
	if items != nil {
		return json.Unmarshal(items, &d.Items)
	}
	return nil
}

func (r SaveRequest) MarshalJSON() ([]byte, error) {
	items := r.Items
	if items == nil {
		items = []SaveItem{}
	}
	return marshalWithItems(r.Meta, items)
}

func (r *SaveRequest) UnmarshalJSON(data []byte) error {
	meta, items, err := splitItems(data)
	if err != nil {
		return err
	}
	r.Meta = meta
	r.Items = nil
	if items != nil {
		return json.Unmarshal(items, &r.Items)
	}
	return nil
}

func marshalWithItems(meta map[string]json.RawMessage, items any) ([]byte, error) {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["Items"] = items
	return json.Marshal(out)
}

func splitItems(data []byte) (map[string]json.RawMessage, json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode plan data: %w", err)
	}
	items := raw["Items"]
	delete(raw, "Items")
	return raw, items, nil
}

// Document builds a document from a successful load response.
func (r *LoadResponse) Document() (*Document, error) {
	if r.Code != 0 {
		msg := r.Message
		if msg == "" {
			msg = DefaultLoadFailure
		}
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, msg)
	}

	doc := New()
	if r.Data == nil {
		return doc, nil
	}

	for _, item := range r.Data.Items {
		kind := KindOf(int(item.Type))
		g, err := UnmarshalGroup(item.Info, kind)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.ID, err)
		}
		g.ID = item.ID
		doc.AddGroup(kind, g)
	}
	return doc, nil
}

// NewSaveRequest serializes doc for the save port, carrying meta over.
// Groups keep their IDs; new groups go out with an empty id for the
// transport to assign.
func NewSaveRequest(meta map[string]json.RawMessage, doc *Document) (*SaveRequest, error) {
	req := &SaveRequest{Meta: meta, Items: make([]SaveItem, 0, doc.Len())}
	for _, l := range doc.Layers() {
		for _, g := range l.Children {
			info, err := MarshalGroup(g)
			if err != nil {
				return nil, err
			}
			req.Items = append(req.Items, SaveItem{
				ID:   g.ID,
				Type: ItemType(l.Kind),
				Name: g.Name(),
				Info: info,
			})
		}
	}
	return req, nil
}

// PlanData converts a save request into the form served by the load port.
func (r *SaveRequest) PlanData() *PlanData {
	data := &PlanData{Meta: r.Meta, Items: make([]LoadItem, 0, len(r.Items))}
	for _, it := range r.Items {
		data.Items = append(data.Items, LoadItem{ID: it.ID, Type: it.Type, Info: it.Info})
	}
	return data
}
