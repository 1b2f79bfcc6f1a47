package types

// Embedding is the feature vector a vision model produces for one image
type Embedding []float32

// ImageScore holds the similarity of one image against the directory reference
type ImageScore struct {
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
	Reference  bool    `json:"reference"`
}

// DirectorySummary is the outcome of aggregating one directory
type DirectorySummary struct {
	Dir       string       `json:"dir"`
	Reference string       `json:"reference"`
	Scores    []ImageScore `json:"scores"`
	Mean      float64      `json:"mean"`
}

// Compared returns the number of images that contributed to the mean
func (s DirectorySummary) Compared() int {
	n := 0
	for _, score := range s.Scores {
		if !score.Reference {
			n++
		}
	}
	return n
}

// ModelResult holds the mean similarity of one model under both trials
type ModelResult struct {
	Model  string  `json:"model"`
	MeanT1 float64 `json:"mean_t1"`
	MeanT2 float64 `json:"mean_t2"`
}

// Axis describes a fixed y-axis range and tick step
type Axis struct {
	Min  float64 `json:"min" mapstructure:"y_min"`
	Max  float64 `json:"max" mapstructure:"y_max"`
	Step float64 `json:"step" mapstructure:"y_step"`
}

// Condition is one experiment seeding strategy and how to chart it
type Condition struct {
	Name  string `json:"name" mapstructure:"name"`
	Title string `json:"title" mapstructure:"title"`
	Axis  Axis   `json:"axis" mapstructure:",squash"`
}
