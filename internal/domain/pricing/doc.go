// Package pricing holds the cost allocation domain: devices and ventures,
// the daily ledgers that attribute devices, parts and usage to ventures,
// and the dated price lists used to value them.
//
// Every date in this package is a calendar day normalized with Day.
package pricing
