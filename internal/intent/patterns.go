package intent

import "regexp"

// Phrase families. Matching is case-insensitive and word-bounded.
var (
	singleTaskPattern  = regexp.MustCompile(`(?i)\b(one task at a time|one task at a time please|focus mode|low overwhelm mode|reduce overwhelm|show one task|single task mode)\b`)
	allTasksPattern    = regexp.MustCompile(`(?i)\b(show all tasks|show all my tasks|list all tasks|show tasks list|all tasks view|show me all tasks|show me all my tasks)\b`)
	continuePattern    = regexp.MustCompile(`(?i)\b(yes|yeah|yep|next|keep going|more)\b`)
	stopPattern        = regexp.MustCompile(`(?i)\b(no|nope|stop|that's all|done)\b`)
	nextTaskPattern    = regexp.MustCompile(`(?i)\b(next task|what'?s the next task|show me the next task)\b`)
	otherTasksPattern  = regexp.MustCompile(`(?i)\b(what other tasks|what else do i have|any other tasks|more tasks)\b`)
	topPriorityPattern = regexp.MustCompile(`(?i)\b(top priority task|top priority today|highest priority task|most important task|most important thing|most important thing i need to do|what do i need to do today|what should i do today|what'?s the most important thing i need to do today|what'?s the most important task today|what'?s the top thing today|what'?s my top task today|what should i tackle first|what do i tackle first|what should i do first|what do i do first|what'?s the highest priority thing today|what'?s the most urgent task|what is the most urgent thing)\b`)
	reclassifyPattern  = regexp.MustCompile(`(?i)(?:\bmove\b|\breclassify\b|\bshould be\b|\bmake\b.*\b(task|reminder|event)\b)`)
	priorityPattern    = regexp.MustCompile(`(?i)\b(priority|prioritise|urgent|important|vital|high|low|medium)\b`)
)
