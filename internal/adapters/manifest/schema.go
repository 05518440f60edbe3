package manifest

// GroupDTO is the on-disk form of a requirement group file.
type GroupDTO struct {
	Path         string           `yaml:"path"         json:"path"`
	Platforms    []string         `yaml:"platforms"    json:"platforms"`
	Requirements []RequirementDTO `yaml:"requirements" json:"requirements"`
}

// RequirementDTO is one requirement record inside a group file.
type RequirementDTO struct {
	Bucket        string `yaml:"bucket"         json:"bucket"`
	Source        string `yaml:"source"         json:"source"`
	Destination   string `yaml:"destination"    json:"destination"`
	ShouldExtract bool   `yaml:"should_extract" json:"should_extract"`
}

// CatalogDTO is the on-disk form of a bucket catalog file.
type CatalogDTO struct {
	Buckets map[string]BucketDTO `yaml:"buckets" json:"buckets"`
}

// BucketDTO describes one bucket in a catalog file.
type BucketDTO struct {
	URL           string            `yaml:"url"           json:"url"`
	S3Bucket      string            `yaml:"s3_bucket"     json:"s3_bucket"`
	Dir           string            `yaml:"dir"           json:"dir"`
	Prefix        *string           `yaml:"prefix"        json:"prefix"`
	Architectures map[string]string `yaml:"architectures" json:"architectures"`
}
