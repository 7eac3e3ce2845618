package reduce

import (
	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// GroupModel is the rendering-agnostic view of a Group handed to
// reporters. Field order is the order of the JSON encoding.
type GroupModel struct {
	JobName         string            `json:"jobName"`
	ResultTimestamp string            `json:"resultTimestamp"`
	LabelLeft       string            `json:"labelLeft"`
	LabelRight      string            `json:"labelRight"`
	TimestampLeft   string            `json:"timestampLeft"`
	TimestampRight  string            `json:"timestampRight"`
	CountTotal      int               `json:"countTotal"`
	CountWarning    int               `json:"countWarning"`
	CountBachelors  int               `json:"countBachelors"`
	Threshold       float64           `json:"threshold"`
	IgnoreKeys      []string          `json:"ignoreMetadataKeys"`
	IdentifyValues  map[string]string `json:"identifyMetadataValues"`
	SortKeys        []string          `json:"sortKeys"`
	Products        []ProductModel    `json:"products"`
}

type ProductModel struct {
	Seq          int                       `json:"seq"`
	LeftPath     string                    `json:"leftPath"`
	RightPath    string                    `json:"rightPath"`
	LeftID       string                    `json:"leftId"`
	RightID      string                    `json:"rightId"`
	FileType     string                    `json:"fileType"`
	Diffability  string                    `json:"diffability"`
	DiffRatio    *float64                  `json:"diffRatio"`
	Metadata     map[string]string         `json:"metadata"`
	Query        []metadata.QueryCriterion `json:"queryOnMetadata"`
	Warning      bool                      `json:"warning"`
	Bachelor     bool                      `json:"bachelor"`
	Error        string                    `json:"error,omitempty"`
}

// TemplateModel builds the reporter model. The result depends only on the
// group's contents.
func (g *Group) TemplateModel() GroupModel {
	model := GroupModel{
		JobName:         string(g.jobName),
		ResultTimestamp: string(g.resultTimestamp),
		LabelLeft:       g.labelLeft,
		LabelRight:      g.labelRight,
		TimestampLeft:   string(g.left.JobTimestamp()),
		TimestampRight:  string(g.right.JobTimestamp()),
		CountTotal:      g.CountTotal(),
		CountWarning:    g.CountWarning(),
		CountBachelors:  g.NumberOfBachelors(),
		Threshold:       g.threshold,
		IgnoreKeys:      g.ignoreKeys.Keys(),
		IdentifyValues:  g.identifyValues.Rules(),
		SortKeys:        append([]string{}, g.sortKeys...),
		Products:        make([]ProductModel, 0, len(g.products)),
	}

	for i, p := range g.products {
		primary := p.Primary()
		pm := ProductModel{
			Seq:         i + 1,
			LeftPath:    p.Left.RelativePath(),
			RightPath:   p.Right.RelativePath(),
			LeftID:      string(p.Left.ID()),
			RightID:     string(p.Right.ID()),
			FileType:    primary.FileType().Extension(),
			Diffability: primary.Diffability().String(),
			Metadata:    primary.Metadata().ToMap(),
			Query:       p.Query.Criteria(),
			Warning:     p.Exceeds(g.threshold),
			Bachelor:    p.IsBachelor(),
		}
		if ratio, ok := p.DiffRatio(); ok {
			pm.DiffRatio = &ratio
		}
		if err := p.Err(); err != nil {
			pm.Error = err.Error()
		}
		model.Products = append(model.Products, pm)
	}
	return model
}
