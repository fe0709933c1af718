// Package schedule turns VM metadata into power schedules and decides which
// of them are due in a resolution window.
//
// A tag is a metadata entry whose key is one of the recognized directives
// (ibm.manage.up, ibm.manage.down) and whose value is a 5-field cron
// expression. Expressions are parsed once, with robfig/cron, when the tag is
// built; a Tag therefore never holds an invalid schedule.
package schedule
