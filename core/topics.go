package core

import "strings"

// Topic is the bucket a picture is filed under.
type Topic string

const (
	TopicSkate Topic = "skate"
	TopicFE    Topic = "fe"
	TopicLark  Topic = "lark"
)

// Topics is the fixed declaration order of all topics. Persistence walks
// topics in this order.
var Topics = []Topic{TopicSkate, TopicFE, TopicLark}

// keywordRule maps a keyword found in a picture's tag to a topic.
type keywordRule struct {
	keyword string
	topic   Topic
}

// classificationRules are checked in order; the first match wins.
var classificationRules = []keywordRule{
	{keyword: "Forsterka Enhet", topic: TopicFE},
	{keyword: "Skating", topic: TopicSkate},
	{keyword: "Larkollen", topic: TopicLark},
}

// ClassifyTag returns the topic for the given tag text. The second return
// value is false when no keyword matches.
func ClassifyTag(tag string) (Topic, bool) {
	for _, rule := range classificationRules {
		if strings.Contains(tag, rule.keyword) {
			return rule.topic, true
		}
	}
	return "", false
}

// TopicAccumulator collects classified picture paths per topic, preserving
// discovery order. It only ever grows.
type TopicAccumulator struct {
	paths map[Topic][]string
	count int
}

// NewTopicAccumulator returns an accumulator with every topic pre-declared.
func NewTopicAccumulator() *TopicAccumulator {
	paths := make(map[Topic][]string, len(Topics))
	for _, t := range Topics {
		paths[t] = []string{}
	}
	return &TopicAccumulator{paths: paths}
}

// Add appends a picture to its topic bucket.
func (a *TopicAccumulator) Add(pic ClassifiedPicture) error {
	if err := ValidateClassifiedPicture(&pic); err != nil {
		return err
	}
	a.paths[pic.Topic] = append(a.paths[pic.Topic], pic.Path)
	a.count++
	return nil
}

// Paths returns the paths filed under topic in discovery order.
func (a *TopicAccumulator) Paths(topic Topic) []string {
	return a.paths[topic]
}

// Len returns the total number of accumulated pictures.
func (a *TopicAccumulator) Len() int {
	return a.count
}

// Pictures flattens the accumulator in topic declaration order.
func (a *TopicAccumulator) Pictures() []ClassifiedPicture {
	out := make([]ClassifiedPicture, 0, a.count)
	for _, t := range Topics {
		for _, p := range a.paths[t] {
			out = append(out, ClassifiedPicture{Path: p, Topic: t})
		}
	}
	return out
}
