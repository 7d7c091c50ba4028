// Package vcs fetches and inspects the working copies of the upstream
// repositories.
//
// Two backends implement Client: GoGit uses the embedded go-git library and
// needs no git installation; CLI runs the git executable the same way a user
// would. Both report versions with "git describe --tags" semantics.
package vcs
