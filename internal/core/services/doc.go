// Package services implements the driving port interfaces.
// Services contain the pipeline logic (document lifecycle, job
// dispatch, registration) and orchestrate calls to driven ports.
//
// Services never touch storage directly; all coordination between
// workers goes through driven.JobStore.
package services
