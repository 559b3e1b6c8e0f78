package graph

// TreeGroup is the serialisable form of a Group for catalog navigation.
// The root group has an empty Identifier.
type TreeGroup struct {
	Name       string         `json:"name"`
	Identifier string         `json:"identifier"`
	Groups     []*TreeGroup   `json:"groups,omitempty"`
	Services   []*TreeService `json:"services,omitempty"`
}

// TreeService is the serialisable form of a Service.
type TreeService struct {
	Name             string   `json:"name"`
	ProvidedAPIs     []string `json:"providedAPIs,omitempty"`
	ConsumedAPIs     []string `json:"consumedAPIs,omitempty"`
	PublishedEvents  []string `json:"publishedEvents,omitempty"`
	SubscribedEvents []string `json:"subscribedEvents,omitempty"`
}

// Tree renders the group hierarchy without back references, children in
// name order and services in record order.
func (g *Graph) Tree() *TreeGroup {
	return treeOf(g.Root)
}

func treeOf(grp *Group) *TreeGroup {
	t := &TreeGroup{Name: grp.Name, Identifier: grp.Identifier}
	for _, child := range grp.SortedChildren() {
		t.Groups = append(t.Groups, treeOf(child))
	}
	for _, s := range grp.Services {
		t.Services = append(t.Services, &TreeService{
			Name:             s.Name,
			ProvidedAPIs:     connectorNames(s.Provides),
			ConsumedAPIs:     connectorNames(s.Consumes),
			PublishedEvents:  connectorNames(s.Publishes),
			SubscribedEvents: connectorNames(s.Subscribes),
		})
	}
	return t
}

func connectorNames(cs []*Connector) []string {
	if len(cs) == 0 {
		return nil
	}
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
